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

// Package config holds the engine's tunable Options: yaml-tagged struct
// fields, a Validate method, and defaults. There is no flag binding
// here — argument parsing belongs to the embedding process, so this
// package only has to produce an Options value from a YAML file or
// from code.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// MinWriteBufferSize is the floor on WriteBufferSize; Validate rejects
// values below it.
const MinWriteBufferSize = 4 * 1024

// DefaultWriteBufferSize is the default per-handle buffer capacity.
const DefaultWriteBufferSize = 4 * 1024 * 1024

// MinFlushGranularity is the floor below which background periodic
// flushing must not trigger. It is not a live write-path trigger today:
// the only implemented trigger is "buffer full".
const MinFlushGranularity = 4 * 1024

// ByteSize is a config field that accepts both a bare byte count
// ("4194304") and a small set of unit suffixes ("4MiB", "512KiB").
type ByteSize int64

func (b *ByteSize) UnmarshalText(text []byte) error {
	s := string(text)
	mult := int64(1)
	for suffix, m := range map[string]int64{
		"KiB": 1024,
		"MiB": 1024 * 1024,
		"GiB": 1024 * 1024 * 1024,
	} {
		if n := len(s) - len(suffix); n > 0 && s[n:] == suffix {
			mult = m
			s = s[:n]
			break
		}
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("config: invalid byte size %q: %w", string(text), err)
	}
	*b = ByteSize(n * mult)
	return nil
}

// Options configures an engine instance.
type Options struct {
	// WriteBufferSize is the per-handle staging buffer capacity. Default
	// DefaultWriteBufferSize; values below MinWriteBufferSize are invalid.
	WriteBufferSize ByteSize `yaml:"write-buffer-size"`

	// ExitOnInvariantViolation: when true, engine.Open enables
	// syncutil invariant checking, so a violated per-handle buffer
	// invariant panics at the next lock boundary. engine.CheckInvariants
	// still reports store violations as an error either way.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	// ReplayStopOnFirstCorruptRecord replaces the default
	// skip-and-continue replay behavior with stop-on-first-failure.
	ReplayStopOnFirstCorruptRecord bool `yaml:"replay-stop-on-first-corrupt-record"`

	// LogSeverity is the minimum logger.Severity name ("TRACE".."OFF").
	LogSeverity string `yaml:"log-severity"`
}

// Defaults returns the default Options.
func Defaults() Options {
	return Options{
		WriteBufferSize: DefaultWriteBufferSize,
		LogSeverity:     "INFO",
	}
}

// Validate checks o for internal consistency: one error per violated
// constraint.
func (o Options) Validate() error {
	if o.WriteBufferSize < MinWriteBufferSize {
		return fmt.Errorf("config: write-buffer-size %d is below the %d byte minimum", o.WriteBufferSize, MinWriteBufferSize)
	}
	switch o.LogSeverity {
	case "TRACE", "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "OFF", "":
	default:
		return fmt.Errorf("config: invalid log-severity %q", o.LogSeverity)
	}
	return nil
}

// Load reads a YAML file at path, decodes it over Defaults(), and
// validates the result. The mapstructure decode hook wires ByteSize's
// UnmarshalText into the decode path.
func Load(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	opts := Defaults()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		Result:           &opts,
		TagName:          "yaml",
	})
	if err != nil {
		return Options{}, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return Options{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
