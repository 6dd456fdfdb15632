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

// Package cmd implements gopagerctl, the command-line front end for
// formatting, checking, serving, and benchmarking a gopager filesystem.
package cmd

import (
	"fmt"
	"os"

	"github.com/shimmeros/gopager/cfg"
	"github.com/shimmeros/gopager/internal/block"
	"github.com/shimmeros/gopager/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	printConfig bool
	bindErr     error
	v           = viper.New()

	// Config is the fully loaded, validated configuration, populated by
	// rootCmd's PersistentPreRunE before any subcommand's RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "gopagerctl",
	Short: "Format, check, serve, and benchmark a gopager simulated filesystem",
	Long: `gopagerctl drives the buffered-filesystem and demand-paged virtual
memory simulator: format a device image, run consistency checks over it,
serve it to a benchmark workload, and report buffer cache / frame table /
swap occupancy as the workload runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		c, err := cfg.Load(v)
		if err != nil {
			return err
		}
		Config = c
		if err := logger.Init(Config.Log); err != nil {
			return err
		}
		block.CheckFileDescriptorLimit()
		if printConfig {
			b, err := cfg.DumpYAML(Config)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, string(b))
			os.Exit(0)
		}
		return nil
	},
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfigFile)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&printConfig, "print-config", false, "print the fully resolved configuration as YAML and exit")
	cfg.BuildFlagSet(rootCmd.PersistentFlags())
	bindErr = cfg.BindFlagSet(v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(formatCmd, fsckCmd, serveCmd, benchCmd)
}

func initConfigFile() {
	if cfgFile == "" {
		return
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		bindErr = fmt.Errorf("read config file %s: %w", cfgFile, err)
	}
}
