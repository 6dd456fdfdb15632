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
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRationalizeDerivesSwapPathFromFilesystemPath(t *testing.T) {
	c := Config{Filesystem: DeviceConfig{Path: "fs.img"}}
	Rationalize(&c)
	assert.Equal(t, "fs.img.swap", c.Swap.Path)
}

func TestRationalizeLeavesExplicitSwapPathAlone(t *testing.T) {
	c := Config{
		Filesystem: DeviceConfig{Path: "fs.img"},
		Swap:       DeviceConfig{Path: "elsewhere.img"},
	}
	Rationalize(&c)
	assert.Equal(t, "elsewhere.img", c.Swap.Path)
}

func TestRationalizeFillsZeroStackDefaults(t *testing.T) {
	c := Config{}
	Rationalize(&c)
	assert.Equal(t, Default().UserStackBytes, c.UserStackBytes)
	assert.Equal(t, Default().StackGrowthSlackBytes, c.StackGrowthSlackBytes)
}

func TestValidateRejectsMisalignedSwapSectors(t *testing.T) {
	c := Default()
	c.Swap.Sectors = SectorsPerPage + 1
	err := Validate(&c)
	assert.Error(t, err)
}

func TestValidateRejectsZeroFilesystemSectors(t *testing.T) {
	c := Default()
	c.Filesystem.Sectors = 0
	assert.Error(t, Validate(&c))
}

func TestValidateRejectsZeroPhysicalPages(t *testing.T) {
	c := Default()
	c.PhysicalPages = 0
	assert.Error(t, Validate(&c))
}

func TestValidateRejectsUnknownSeverityAndFormat(t *testing.T) {
	c := Default()
	c.Log.Severity = "BOGUS"
	assert.Error(t, Validate(&c))

	c = Default()
	c.Log.Format = "xml"
	assert.Error(t, Validate(&c))
}

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	c := Default()
	assert.NoError(t, Validate(&c))
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BuildFlagSet(fs)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, BindFlagSet(v, fs))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default().Filesystem.Sectors, c.Filesystem.Sectors)
	assert.Equal(t, c.Filesystem.Path+".swap", c.Swap.Path)
}

func TestLoadRejectsInvalidSeverityFromFlag(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BuildFlagSet(fs)
	require.NoError(t, fs.Parse([]string{"--log-severity=NOTASEVERITY"}))
	require.NoError(t, BindFlagSet(v, fs))

	_, err := Load(v)
	assert.Error(t, err)
}

func TestDumpYAMLRoundTripsThroughAFreshViper(t *testing.T) {
	b, err := DumpYAML(Default())
	require.NoError(t, err)
	assert.Contains(t, string(b), "physical-pages:")
	assert.Contains(t, string(b), "filesystem:")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(b)))
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestSeverityDecodeHookIsCaseInsensitive(t *testing.T) {
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BuildFlagSet(fs)
	require.NoError(t, fs.Parse([]string{"--log-severity=debug"}))
	require.NoError(t, BindFlagSet(v, fs))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DEBUG, c.Log.Severity)
}
