// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inode

// File adapts a (Table, Inode) pair to the plain ReadAt/WriteAt/Close
// shape internal/fault needs for an executable image or an mmap'd file,
// so that package never has to import internal/inode directly.
type File struct {
	table *Table
	in    *Inode
}

// OpenFile opens sector through table and wraps it as a File.
func OpenFile(table *Table, sector uint32) (*File, error) {
	in, err := table.Open(sector)
	if err != nil {
		return nil, err
	}
	return &File{table: table, in: in}, nil
}

// ReadAt reads from the wrapped inode.
func (f *File) ReadAt(buf []byte, offset int64) (int, error) {
	return f.table.ReadAt(f.in, buf, offset)
}

// WriteAt writes to the wrapped inode.
func (f *File) WriteAt(buf []byte, offset int64) (int, error) {
	return f.table.WriteAt(f.in, buf, offset)
}

// Close releases this opener's reference to the underlying inode.
func (f *File) Close() error {
	return f.table.Close(f.in)
}

// Sector returns the inumber of the wrapped inode.
func (f *File) Sector() uint32 { return f.in.Sector() }
