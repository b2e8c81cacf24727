/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package statemap reads and writes dialogs as a YAML map of numbered states. Each state
// names its speaker and either a list of choices or a monolog, and points at the next state
// through exit_state. An exit state that is not a key of the map ends the dialog.
package statemap

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Map is keyed by state id.
type Map map[int]State

type State struct {
	Source       string   `yaml:"source"`
	Content      Content  `yaml:"content"`
	TriggerEvent []string `yaml:"trigger_event"`
}

// Content holds exactly one of Choices or Monolog. It is encoded untagged: a sequence is a
// list of choices, a mapping is a monolog.
type Content struct {
	Choices []Choice
	Monolog *Monolog
}

type Choice struct {
	Text      string     `yaml:"text"`
	Condition *Condition `yaml:"condition"`
	ExitState int        `yaml:"exit_state"`
}

type Monolog struct {
	Text      []string `yaml:"text"`
	ExitState int      `yaml:"exit_state"`
}

type Condition struct {
	Events         []string `yaml:"events"`
	KarmaThreshold *[2]int  `yaml:"karma_threshold,flow"`
}

// IsChoices reports whether the content is a choice list.
func (c Content) IsChoices() bool { return c.Choices != nil }

func (c Content) MarshalYAML() (any, error) {
	if c.Choices != nil {
		return c.Choices, nil
	}
	if c.Monolog == nil {
		return Monolog{Text: []string{}}, nil
	}
	return c.Monolog, nil
}

func (c *Content) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var ch []Choice
		if err := n.Decode(&ch); err != nil {
			return err
		}
		if ch == nil {
			ch = []Choice{}
		}
		*c = Content{Choices: ch}
	case yaml.MappingNode:
		var m Monolog
		if err := n.Decode(&m); err != nil {
			return err
		}
		*c = Content{Monolog: &m}
	default:
		return fmt.Errorf("statemap: line %d: content must be a list of choices or a monolog", n.Line)
	}
	return nil
}

// ErrInvalid wraps schema violations.
var ErrInvalid = errors.New("statemap: invalid document")

// Encode renders m as YAML with two-space indentation.
func Encode(m Map) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode validates data against the state map schema and decodes it.
func Decode(data []byte) (Map, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("statemap: decode: %w", err)
	}
	return m, nil
}
