/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"ftodialog/internal/dialog"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Dialog        DialogConfig  `yaml:"dialog"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// DialogConfig holds the event declarations used when a dialog file is
// checked or played outside of a project.
type DialogConfig struct {
	WorldEvents   []string `yaml:"world_events"`
	TriggerEvents []string `yaml:"trigger_events"`
	KarmaMin      *int     `yaml:"karma_min,omitempty"`
	KarmaMax      *int     `yaml:"karma_max,omitempty"`
	Player        string   `yaml:"player"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Dialog:        DialogConfig{Player: "Player"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBackendURL       = "FTO_BACKEND_URL"
	EnvBackendTimeoutMs = "FTO_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "FTO_TLS_INSECURE"
	// EnvWorldEvents and EnvTriggerEvents take comma separated names.
	EnvWorldEvents   = "FTO_WORLD_EVENTS"
	EnvTriggerEvents = "FTO_TRIGGER_EVENTS"
	EnvPlayer        = "FTO_PLAYER"
	EnvLogLevel      = "FTO_LOG_LEVEL"
	EnvLogFormat     = "FTO_LOG_FORMAT"
	EnvLogSource     = "FTO_LOG_SOURCE"
	EnvLogFile       = "FTO_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "ftodialog"
	keyringToken   = "backend_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// CustomInfos converts the dialog section into parser configuration.
func (d DialogConfig) CustomInfos() dialog.CustomInfos {
	infos := dialog.CustomInfos{
		WorldEvents:   append([]string(nil), d.WorldEvents...),
		TriggerEvents: append([]string(nil), d.TriggerEvents...),
	}
	if d.KarmaMin != nil || d.KarmaMax != nil {
		lim := dialog.DefaultKarmaLimits
		if d.KarmaMin != nil {
			lim.Min = *d.KarmaMin
		}
		if d.KarmaMax != nil {
			lim.Max = *d.KarmaMax
		}
		infos.KarmaLimits = &lim
	}
	return infos
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ftodialog")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ftodialog")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "ftodialog")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "ftodialog")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ForgetToken removes the stored backend token.
func ForgetToken() error {
	return tokenStore.Delete(keyringService, keyringToken)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if len(src.Dialog.WorldEvents) > 0 {
		dst.Dialog.WorldEvents = src.Dialog.WorldEvents
	}
	if len(src.Dialog.TriggerEvents) > 0 {
		dst.Dialog.TriggerEvents = src.Dialog.TriggerEvents
	}
	if src.Dialog.KarmaMin != nil {
		dst.Dialog.KarmaMin = src.Dialog.KarmaMin
	}
	if src.Dialog.KarmaMax != nil {
		dst.Dialog.KarmaMax = src.Dialog.KarmaMax
	}
	if strings.TrimSpace(src.Dialog.Player) != "" {
		dst.Dialog.Player = strings.TrimSpace(src.Dialog.Player)
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorldEvents)); v != "" {
		cfg.Dialog.WorldEvents = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTriggerEvents)); v != "" {
		cfg.Dialog.TriggerEvents = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPlayer)); v != "" {
		cfg.Dialog.Player = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var envKeys = map[string]string{
	"backend.base_url":      EnvBackendURL,
	"backend.timeout_ms":    EnvBackendTimeoutMs,
	"backend.tls_insecure":  EnvBackendTLSInsec,
	"dialog.world_events":   EnvWorldEvents,
	"dialog.trigger_events": EnvTriggerEvents,
	"dialog.player":         EnvPlayer,
	"logging.level":         EnvLogLevel,
	"logging.format":        EnvLogFormat,
	"logging.source":        EnvLogSource,
	"logging.file":          EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// EffectiveTimeout returns the backend timeout, falling back to the default for non-positive values.
func (b BackendConfig) EffectiveTimeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
