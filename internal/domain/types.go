/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"

	"ftodialog/internal/dialog"
)

// Project is the dialog project manifest. It serializes to a human-readable JSON file
// at the project root.
type Project struct {
	Name     string    `json:"name"`
	Metadata Metadata  `json:"metadata,omitempty"`
	Events   Events    `json:"events"`
	Dialogs  []Dialog  `json:"dialogs"`
	Backend  *Endpoint `json:"backend,omitempty"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Game    string `json:"game,omitempty"`
	Authors string `json:"authors,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Events declares the names the parser accepts and the karma scale of the game.
type Events struct {
	World    []string `json:"world"`
	Triggers []string `json:"triggers"`
	KarmaMin *int     `json:"karmaMin,omitempty"`
	KarmaMax *int     `json:"karmaMax,omitempty"`
}

// Dialog is one catalogued dialog source. File is relative to the project's dialogs folder.
type Dialog struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Tags   []string `json:"tags,omitempty"`
	Player string   `json:"player,omitempty"` // author the player speaks as
}

// Endpoint points at a shared dialog server.
type Endpoint struct {
	URL  string `json:"url"`
	User string `json:"user,omitempty"`
}

// CustomInfos converts the event declaration into parser configuration.
// Missing karma bounds fall back to the dialog defaults.
func (e Events) CustomInfos() dialog.CustomInfos {
	infos := dialog.CustomInfos{
		WorldEvents:   append([]string(nil), e.World...),
		TriggerEvents: append([]string(nil), e.Triggers...),
	}
	if e.KarmaMin != nil || e.KarmaMax != nil {
		lim := dialog.DefaultKarmaLimits
		if e.KarmaMin != nil {
			lim.Min = *e.KarmaMin
		}
		if e.KarmaMax != nil {
			lim.Max = *e.KarmaMax
		}
		infos.KarmaLimits = &lim
	}
	return infos
}

// FindDialog looks a dialog up by id or, failing that, by case-insensitive name.
func (p *Project) FindDialog(key string) (*Dialog, bool) {
	for i := range p.Dialogs {
		if p.Dialogs[i].ID == key {
			return &p.Dialogs[i], true
		}
	}
	for i := range p.Dialogs {
		if strings.EqualFold(p.Dialogs[i].Name, key) {
			return &p.Dialogs[i], true
		}
	}
	return nil, false
}

// RemoveDialog drops the dialog with the given id and reports whether it existed.
func (p *Project) RemoveDialog(id string) bool {
	for i := range p.Dialogs {
		if p.Dialogs[i].ID == id {
			p.Dialogs = append(p.Dialogs[:i], p.Dialogs[i+1:]...)
			return true
		}
	}
	return false
}
