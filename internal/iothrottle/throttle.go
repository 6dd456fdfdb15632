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

// Package iothrottle wraps a block.Interface in a token-bucket rate limiter,
// so the `bench` CLI can demonstrate buffer cache and read-ahead behavior
// against a deliberately slow device, the same role the teacher's rate
// limiter plays in front of GCS egress.
package iothrottle

import (
	"context"

	"github.com/shimmeros/gopager/internal/block"
	"golang.org/x/time/rate"
)

// Device decorates a block.Interface, blocking each sector I/O until the
// limiter has a token for its SectorSize bytes.
type Device struct {
	inner   block.Interface
	limiter *rate.Limiter
}

// New wraps inner with a token bucket allowing bytesPerSec sustained
// throughput and a burst of one sector.
func New(inner block.Interface, bytesPerSec int64) *Device {
	return &Device{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), block.SectorSize),
	}
}

func (d *Device) wait() {
	// A throttled device is a deliberate, local benchmarking aid: there is
	// no caller-supplied context to cancel against, so waiting forever on
	// the limiter is the correct behavior here.
	_ = d.limiter.WaitN(context.Background(), block.SectorSize)
}

func (d *Device) ReadSector(sector uint32, buf []byte) error {
	d.wait()
	return d.inner.ReadSector(sector, buf)
}

func (d *Device) WriteSector(sector uint32, buf []byte) error {
	d.wait()
	return d.inner.WriteSector(sector, buf)
}

func (d *Device) Size() uint32 { return d.inner.Size() }
func (d *Device) Close() error { return d.inner.Close() }

var _ block.Interface = (*Device)(nil)
