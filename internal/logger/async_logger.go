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

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger decouples log writes from the writer (typically a rotating
// file) behind a bounded channel and a single draining goroutine, so a slow
// disk never stalls the buffer cache or fault handler that's logging
// through it. A full buffer drops the message rather than blocking the
// caller; a warning naming the drop goes to stderr.
type AsyncLogger struct {
	w      io.Writer
	msgs   chan []byte
	done   chan struct{}
	dropMu sync.Mutex
	drops  int
}

// NewAsyncLogger starts the drain goroutine and returns the logger. Close
// must be called to flush remaining buffered writes and stop the goroutine.
func NewAsyncLogger(w io.Writer, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		w:    w,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *AsyncLogger) drain() {
	defer close(a.done)
	for b := range a.msgs {
		_, _ = a.w.Write(b)
	}
}

// Write implements io.Writer. It copies p (the caller may reuse its buffer)
// and enqueues it; it never blocks.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)

	select {
	case a.msgs <- cp:
	default:
		a.dropMu.Lock()
		a.drops++
		n := a.drops
		a.dropMu.Unlock()
		fmt.Fprintf(os.Stderr, "async logger: dropping message, buffer full (%d dropped so far)\n", n)
	}
	return len(p), nil
}

// Close stops accepting new writes, waits for the queue to drain, and
// closes the underlying writer if it implements io.Closer.
func (a *AsyncLogger) Close() error {
	close(a.msgs)
	<-a.done
	if c, ok := a.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
