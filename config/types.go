package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/mitchellh/mapstructure"
)

// DefaultWindow is the coalescing window used when none is configured.
const DefaultWindow = 30 * time.Second

// Tree source kinds.
const (
	SourceChrome  = "chrome"
	SourceFirefox = "firefox"
	SourceNone    = "none"
)

// Settings holds daemon-level configuration read from marksync.yml / marksync.toml.
// The sync record itself (endpoint, secret, selection) lives in the state file,
// not here.
type Settings struct {
	Version   string            `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Settings format version (e.g. '1')"`
	Window    Duration          `yaml:"window,omitempty" toml:"window,omitempty" json:"window,omitempty" jsonschema:"description=Quiet period after the last bookmark change before a sync fires"`
	Source    SourceSettings    `yaml:"source,omitempty" toml:"source,omitempty" json:"source,omitempty" jsonschema:"description=Bookmark tree backend"`
	Transport TransportSettings `yaml:"transport,omitempty" toml:"transport,omitempty" json:"transport,omitempty" jsonschema:"description=Outbound HTTP settings"`
	State     StateSettings     `yaml:"state,omitempty" toml:"state,omitempty" json:"state,omitempty" jsonschema:"description=Durable sync record location"`

	// Logging is decoded by the logging package via UnmarshalSection.
	Logging map[string]interface{} `yaml:"logging,omitempty" toml:"logging,omitempty" json:"logging,omitempty" jsonschema:"description=Logging configuration"`
}

// SourceSettings selects and locates the bookmark tree.
type SourceSettings struct {
	Kind         string   `yaml:"kind,omitempty" toml:"kind,omitempty" json:"kind,omitempty" jsonschema:"enum=chrome,enum=firefox,enum=none,description=Browser whose bookmarks are synced"`
	Path         string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Chromium Bookmarks file or Firefox places.sqlite"`
	PollInterval Duration `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"description=Periodic re-read in addition to file watching (0 disables)"`
}

// TransportSettings configures the outbound POST.
type TransportSettings struct {
	Timeout   Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=HTTP timeout (0 keeps the transport default)"`
	UserAgent string   `yaml:"user_agent,omitempty" toml:"user_agent,omitempty" json:"user_agent,omitempty" jsonschema:"description=User-Agent header for sync requests"`
}

// StateSettings locates the durable sync record.
type StateSettings struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Path of the state file holding endpoint, secret and selection"`
}

// SetDefaults fills unset fields.
func (s *Settings) SetDefaults() {
	if s.Version == "" {
		s.Version = "1"
	}
	if s.Window.Duration == 0 {
		s.Window = NewDuration(DefaultWindow)
	}
	if s.Source.Kind == "" {
		s.Source.Kind = SourceChrome
	}
	if s.Source.Path == "" && s.Source.Kind == SourceChrome {
		s.Source.Path = DefaultChromeBookmarksPath()
	}
	s.Source.Path = expandHome(s.Source.Path)
	if s.Transport.UserAgent == "" {
		s.Transport.UserAgent = "marksync"
	}
	if s.State.Path == "" {
		s.State.Path = paths.StateFilePath()
	}
	s.State.Path = expandHome(s.State.Path)
}

// Validate checks semantic constraints the schema cannot express.
func (s *Settings) Validate() error {
	if s.Window.Duration <= 0 {
		return errors.ConfigInvalid("window must be positive").WithDetail("window", s.Window.String())
	}
	if s.Source.PollInterval.Duration < 0 || s.Transport.Timeout.Duration < 0 {
		return errors.ConfigInvalid("durations must not be negative")
	}
	switch s.Source.Kind {
	case SourceChrome, SourceFirefox:
		if s.Source.Path == "" {
			return errors.ConfigInvalid(fmt.Sprintf("source.path is required for %s", s.Source.Kind))
		}
	case SourceNone:
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown source kind %q", s.Source.Kind)).
			WithDetail("kind", s.Source.Kind)
	}
	return nil
}

// UnmarshalSection decodes a free-form section (currently only "logging")
// into target, which must be a pointer. Missing sections leave target untouched.
func (s *Settings) UnmarshalSection(key string, target interface{}) error {
	var section interface{}
	switch key {
	case "logging":
		if s.Logging == nil {
			return nil
		}
		section = s.Logging
	default:
		return fmt.Errorf("unknown settings section %q", key)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("failed to decode settings section '%s': %w", key, err)
	}
	return nil
}

// DefaultChromeBookmarksPath returns the default Chrome profile's Bookmarks file.
func DefaultChromeBookmarksPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "Default", "Bookmarks")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "Google", "Chrome", "User Data", "Default", "Bookmarks")
		}
		return ""
	default:
		return filepath.Join(home, ".config", "google-chrome", "Default", "Bookmarks")
	}
}

// ValidateEndpoint reports whether raw is an absolute URL usable as a sync endpoint.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid endpoint URL: %v", err))
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.InvalidInput(fmt.Sprintf("endpoint URL must be absolute: %q", raw))
	}
	return nil
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
