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
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/shimmeros/gopager/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	textTraceString   = `^time=\S+ level=TRACE msg=www.traceExample.com`
	textDebugString   = `^time=\S+ level=DEBUG msg=www.debugExample.com`
	textInfoString    = `^time=\S+ level=INFO msg=www.infoExample.com`
	textWarningString = `^time=\S+ level=WARN msg=www.warningExample.com`
	textErrorString   = `^time=\S+ level=ERROR msg=www.errorExample.com`

	jsonTraceString   = `^\{"time":"[^"]+","level":"TRACE","msg":"www.traceExample.com"\}`
	jsonDebugString   = `^\{"time":"[^"]+","level":"DEBUG","msg":"www.debugExample.com"\}`
	jsonInfoString    = `^\{"time":"[^"]+","level":"INFO","msg":"www.infoExample.com"\}`
	jsonWarningString = `^\{"time":"[^"]+","level":"WARN","msg":"www.warningExample.com"\}`
	jsonErrorString   = `^\{"time":"[^"]+","level":"ERROR","msg":"www.errorExample.com"\}`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

// redirectLogsToGivenBuffer reconfigures the package-level logger exactly
// as Init would, but against buf instead of stderr or a rotated file, so
// each case can assert on captured output directly.
func redirectLogsToGivenBuffer(buf *bytes.Buffer, format string, severity cfg.Severity) {
	defaultFactory.format = format
	level, ok := severityToLevel[severity]
	if severity == cfg.OFF {
		level = slog.LevelError + 100
		ok = true
	}
	if !ok {
		panic("unknown severity in test: " + string(severity))
	}
	defaultFactory.level.Set(level)
	defaultLogger = slog.New(defaultFactory.handler(buf))
}

func fetchLogOutputForSpecifiedSeverityLevel(format string, severity cfg.Severity, functions []func()) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, format, severity)

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}
}

func validateOutput(t *testing.T, expected []string, output []string) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
			continue
		}
		assert.Regexp(t, regexp.MustCompile(expected[i]), output[i])
	}
}

func validateLogOutputAtSpecifiedFormatAndSeverity(t *testing.T, format string, severity cfg.Severity, expected []string) {
	output := fetchLogOutputForSpecifiedSeverityLevel(format, severity, getTestLoggingFunctions())
	validateOutput(t, expected, output)
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelOFF() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.OFF, []string{"", "", "", "", ""})
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelERROR() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.ERROR, []string{"", "", "", "", textErrorString})
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelWARNING() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.WARNING, []string{"", "", "", textWarningString, textErrorString})
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelINFO() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.INFO, []string{"", "", textInfoString, textWarningString, textErrorString})
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelDEBUG() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.DEBUG, []string{"", textDebugString, textInfoString, textWarningString, textErrorString})
}

func (s *LoggerTest) TestTextFormatLogs_LogLevelTRACE() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "text", cfg.TRACE, []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString})
}

func (s *LoggerTest) TestJSONFormatLogs_LogLevelINFO() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "json", cfg.INFO, []string{"", "", jsonInfoString, jsonWarningString, jsonErrorString})
}

func (s *LoggerTest) TestJSONFormatLogs_LogLevelTRACE() {
	validateLogOutputAtSpecifiedFormatAndSeverity(s.T(), "json", cfg.TRACE, []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString})
}

func (s *LoggerTest) TestInitWritesToLogFile() {
	dir := s.T().TempDir()
	filePath := filepath.Join(dir, "log.txt")

	err := Init(cfg.LogConfig{FilePath: filePath, Severity: cfg.INFO, Format: "text"})
	s.Require().NoError(err)

	Infof("written to file")
	// The file is written by the async drain goroutine; Close waits for it.
	s.Require().NoError(Close())

	_, err = os.Stat(filePath)
	s.Require().NoError(err)
}

func (s *LoggerTest) TestInitRejectsUnknownSeverity() {
	err := Init(cfg.LogConfig{Severity: "BOGUS", Format: "text"})
	s.Require().Error(err)
}

func TestInitDefaultsToStderrWhenNoFilePath(t *testing.T) {
	require.NoError(t, Init(cfg.LogConfig{Severity: cfg.INFO, Format: "text"}))
	require.NoError(t, Close())
}
