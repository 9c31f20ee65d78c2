package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/handiism/patent-downloader/internal/download"
	"github.com/handiism/patent-downloader/internal/export"
	pdlhttp "github.com/handiism/patent-downloader/internal/http"
	"github.com/handiism/patent-downloader/internal/patents"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath          string `json:"downloads_path" yaml:"downloads_path"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	ItemTimeout            int    `json:"item_timeout" yaml:"item_timeout"`       // seconds, 0 = none
	RequestTimeout         int    `json:"request_timeout" yaml:"request_timeout"` // seconds, 0 = none

	// Source settings
	UserAgent       string `json:"user_agent" yaml:"user_agent"`
	ResolverBaseURL string `json:"resolver_base_url" yaml:"resolver_base_url"`
	BucketURL       string `json:"bucket_url" yaml:"bucket_url"` // optional mirror, e.g. file:///srv/patents

	// Export settings
	ExportIncludeCountryCode  bool `json:"export_include_country_code" yaml:"export_include_country_code"`
	ExportIncludeStatusSuffix bool `json:"export_include_status_suffix" yaml:"export_include_status_suffix"`
}

// DefaultSettings returns settings with default values.
//
// An empty DownloadsPath means documents go next to the input file.
func DefaultSettings() *Settings {
	return &Settings{
		MaxConcurrentDownloads: download.DefaultMaxConcurrency,
		UserAgent:              pdlhttp.DefaultUserAgent,
		ResolverBaseURL:        patents.DefaultBaseURL,

		ExportIncludeCountryCode:  true,
		ExportIncludeStatusSuffix: true,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// Values missing from the file keep their defaults; a missing file yields
// DefaultSettings.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every out-of-range value.
func (s *Settings) Validate() error {
	var errs []error
	if s.MaxConcurrentDownloads < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_downloads must be at least 1, got %d", s.MaxConcurrentDownloads))
	}
	if s.ItemTimeout < 0 {
		errs = append(errs, fmt.Errorf("item_timeout must not be negative, got %d", s.ItemTimeout))
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %d", s.RequestTimeout))
	}
	if s.ResolverBaseURL == "" {
		errs = append(errs, errors.New("resolver_base_url must not be empty"))
	}
	return errors.Join(errs...)
}

// ToDownloadOptions converts settings to orchestrator options.
func (s *Settings) ToDownloadOptions() download.Options {
	return download.Options{
		MaxConcurrency: s.MaxConcurrentDownloads,
		ItemTimeout:    time.Duration(s.ItemTimeout) * time.Second,
	}
}

// ToHTTPOptions converts settings to HTTP client options.
func (s *Settings) ToHTTPOptions() pdlhttp.Options {
	return pdlhttp.Options{
		UserAgent: s.UserAgent,
		Timeout:   time.Duration(s.RequestTimeout) * time.Second,
	}
}

// ToExportOptions converts settings to export options.
func (s *Settings) ToExportOptions() export.Options {
	return export.Options{
		IncludeCountryCode:  s.ExportIncludeCountryCode,
		IncludeStatusSuffix: s.ExportIncludeStatusSuffix,
	}
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "patent-downloader.yaml"
	}
	return filepath.Join(dir, "patent-downloader", "config.yaml")
}
