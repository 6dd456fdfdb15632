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

package cfg

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildFlagSet registers every Config field as a pflag, suitable for both
// stand-alone parsing and embedding into a cobra.Command's flag set.
func BuildFlagSet(fs *pflag.FlagSet) {
	d := Default()
	fs.String("filesystem-path", d.Filesystem.Path, "path to the backing file for the simulated filesystem device")
	fs.Uint32("filesystem-sectors", d.Filesystem.Sectors, "size, in 512-byte sectors, of the filesystem device")
	fs.String("swap-path", "", "path to the backing file for the simulated swap device (defaults to <filesystem-path>.swap)")
	fs.Uint32("swap-sectors", d.Swap.Sectors, "size, in 512-byte sectors, of the swap device")
	fs.Uint32("physical-pages", d.PhysicalPages, "number of simulated physical pages available to the frame allocator")
	fs.Uint32("stack-growth-slack-bytes", d.StackGrowthSlackBytes, "bytes below the stack pointer still treated as valid stack growth")
	fs.Uint32("user-stack-bytes", d.UserStackBytes, "maximum size of a process's simulated stack region")
	fs.Int64("throttle-bytes-per-sec", 0, "if non-zero, rate-limit simulated device I/O to this many bytes/sec")
	fs.String("log-file-path", "", "if set, rotate logs through this file instead of writing to stderr")
	fs.String("log-format", d.Log.Format, "log output format: text or json")
	fs.String("log-severity", string(d.Log.Severity), "minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	fs.String("metrics-addr", d.MetricsAddr, "if set, serve Prometheus metrics on this address")
}

// flagToKey maps each pflag registered by BuildFlagSet to the nested viper
// key its value belongs under, so viper.Unmarshal can decode straight into
// the nested Config struct.
var flagToKey = map[string]string{
	"filesystem-path":          "filesystem.path",
	"filesystem-sectors":       "filesystem.sectors",
	"swap-path":                "swap.path",
	"swap-sectors":             "swap.sectors",
	"physical-pages":           "physical-pages",
	"stack-growth-slack-bytes": "stack-growth-slack-bytes",
	"user-stack-bytes":         "user-stack-bytes",
	"throttle-bytes-per-sec":   "throttle-bytes-per-sec",
	"log-file-path":            "log.file-path",
	"log-format":               "log.format",
	"log-severity":             "log.severity",
	"metrics-addr":             "metrics-addr",
}

// BindFlagSet binds every flag registered by BuildFlagSet into v, honoring
// GOPAGER_-prefixed environment variables as an override layer above flag
// defaults.
func BindFlagSet(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		key, ok := flagToKey[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			firstErr = fmt.Errorf("bind flag %q: %w", f.Name, err)
		}
	})
	return firstErr
}

// Load decodes v into a fully rationalized, validated Config.
func Load(v *viper.Viper) (Config, error) {
	c := Default()
	if err := v.Unmarshal(&c, viper.DecodeHook(DecodeHooks())); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	Rationalize(&c)
	if err := Validate(&c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
