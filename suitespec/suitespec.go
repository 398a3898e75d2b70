// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package suitespec parses YAML test suite definitions, the format suites
// are authored in before being imported into the store.
package suitespec

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultCaseTimeout = 30 * time.Second

type Suite struct {
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	Cases    []Case `yaml:"cases"`
}

type Case struct {
	Name    string   `yaml:"name"`
	Timeout Duration `yaml:"timeout"`
	Tags    []string `yaml:"tags"`
}

// Duration accepts Go duration strings ("45s", "2m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and validates a suite definition file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite file: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("suite has no name")
	}
	if len(s.Cases) == 0 {
		return nil, fmt.Errorf("suite %s has no cases", s.Name)
	}
	seen := map[string]bool{}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			return nil, fmt.Errorf("suite %s: case %d has no name", s.Name, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("suite %s: duplicate case name %q", s.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Timeout == 0 {
			c.Timeout = Duration(defaultCaseTimeout)
		}
	}
	return &s, nil
}
