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

package block

import (
	"github.com/shimmeros/gopager/internal/logger"
	"golang.org/x/sys/unix"
)

// minFileDescriptors is the floor this package checks RLIMIT_NOFILE
// against: one fd per simulated device, plus headroom for whatever else
// the host process has open.
const minFileDescriptors = 16

// CheckFileDescriptorLimit queries the process's open-file-descriptor
// limit and logs a warning if it's too low to safely open the filesystem
// and swap devices. Unlike the filesystem and swap devices themselves,
// a low limit isn't fatal here — NewFileDevice will simply fail with a
// clear error if it is hit.
func CheckFileDescriptorLimit() {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Warnf("block: query RLIMIT_NOFILE: %v", err)
		return
	}
	if rlimit.Cur < minFileDescriptors {
		logger.Warnf("block: RLIMIT_NOFILE is %d, below the recommended minimum of %d", rlimit.Cur, minFileDescriptors)
	}
}
