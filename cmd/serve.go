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

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shimmeros/gopager/internal/logger"
	"github.com/shimmeros/gopager/internal/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Hold the filesystem and swap devices open, serving metrics until interrupted",
	Long: `serve opens the filesystem and swap devices, keeping the buffer
cache's read-ahead worker and (if configured) the Prometheus metrics
endpoint running until SIGINT or SIGTERM, at which point it flushes the
buffer cache and exits cleanly. It does not itself expose a filesystem
to any client; use it to keep a device pair warm for out-of-process
tooling, or as the target of a separately driven load.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(Config)
		if err != nil {
			return err
		}
		defer rt.Close()

		if Config.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(Config.MetricsAddr); err != nil {
					logger.Errorf("metrics server stopped: %v", err)
				}
			}()
			logger.Infof("serving metrics on %s", Config.MetricsAddr)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		logger.Infof("serving %s; press ctrl-c to stop", Config.Filesystem.Path)
		<-sig
		logger.Infof("shutting down")
		return nil
	},
}
