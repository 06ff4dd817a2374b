// Copyright 2026 The Append-FS Authors.
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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSize_UnmarshalText(t *testing.T) {
	cases := map[string]int64{
		"4096":  4096,
		"4KiB":  4 * 1024,
		"4MiB":  4 * 1024 * 1024,
		"1GiB":  1024 * 1024 * 1024,
	}
	for text, want := range cases {
		var b ByteSize
		require.NoError(t, b.UnmarshalText([]byte(text)), text)
		assert.Equal(t, want, int64(b), text)
	}
}

func TestByteSize_UnmarshalText_Invalid(t *testing.T) {
	var b ByteSize
	assert.Error(t, b.UnmarshalText([]byte("not-a-size")))
}

func TestDefaults_AreValid(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestValidate_RejectsSmallBuffer(t *testing.T) {
	o := Defaults()
	o.WriteBufferSize = MinWriteBufferSize - 1
	assert.Error(t, o.Validate())
}

func TestValidate_RejectsUnknownSeverity(t *testing.T) {
	o := Defaults()
	o.LogSeverity = "VERY_LOUD"
	assert.Error(t, o.Validate())
}

func TestLoad_DecodesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "write-buffer-size: 1MiB\nlog-severity: DEBUG\nexit-on-invariant-violation: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ByteSize(1024*1024), opts.WriteBufferSize)
	assert.Equal(t, "DEBUG", opts.LogSeverity)
	assert.True(t, opts.ExitOnInvariantViolation)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("write-buffer-size: 1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
