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
	"fmt"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/logger"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create and initialize a filesystem and swap device image",
	Long: `format creates the backing files for the filesystem and swap
devices (extending a file smaller than its configured sector count; a
larger file is not truncated) and writes a
fresh, empty root directory inode at the filesystem's reserved root
sector. Running format against an existing filesystem device discards
everything it held.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(Config)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.inodes.Create(cfg.RootSector, 0, true); err != nil {
			return fmt.Errorf("create root directory: %w", err)
		}

		logger.Infof("formatted %s (%d sectors) and %s (%d sectors); root directory at sector %d",
			Config.Filesystem.Path, Config.Filesystem.Sectors,
			Config.Swap.Path, Config.Swap.Sectors, cfg.RootSector)
		fmt.Printf("formatted filesystem at %s and swap at %s\n", Config.Filesystem.Path, Config.Swap.Path)
		return nil
	},
}
