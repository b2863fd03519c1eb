package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Format is a settings file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ConfigFileNames lists the settings files searched in the config directory, in order.
var ConfigFileNames = []string{
	"marksync.yml",
	"marksync.yaml",
	"marksync.toml",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses a settings file. The encoding is chosen by extension.
func Load(path string) (*Settings, error) {
	return LoadWithLogger(path, logrus.New())
}

// LoadWithLogger is Load with debug output of the effective settings.
func LoadWithLogger(path string, logger *logrus.Logger) (*Settings, error) {
	logger.WithField("path", path).Debug("Loading settings")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read settings file").
			WithDetail("path", path)
	}

	settings, err := LoadFromBytes(data, FormatForPath(path))
	if err != nil {
		if e, ok := err.(*errors.MarksyncError); ok {
			return nil, e.WithDetail("path", path)
		}
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if out, err := yaml.Marshal(settings); err == nil {
			logger.Debugf("Effective settings:\n%s", string(out))
		}
	}
	return settings, nil
}

// LoadDefault loads the settings file from the config directory. A missing
// file is not an error: defaults are returned instead.
func LoadDefault() (*Settings, error) {
	path, err := FindConfigFile()
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			settings := &Settings{}
			settings.SetDefaults()
			return settings, nil
		}
		return nil, err
	}
	return Load(path)
}

// LoadFromBytes parses settings in the given format, validates them against
// the generated schema, applies defaults and runs semantic validation.
func LoadFromBytes(data []byte, format Format) (*Settings, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	if err := unmarshal(expanded, format, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse settings")
	}

	if raw != nil {
		validator, err := NewSchemaValidator()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
		}
		if err := validator.Validate(raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
		}
	}

	var settings Settings
	if err := unmarshal(expanded, format, &settings); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode settings")
	}

	settings.SetDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// FindConfigFile locates the settings file. MARKSYNC_CONFIG wins; otherwise
// the config directory is searched for ConfigFileNames.
func FindConfigFile() (string, error) {
	if explicit := os.Getenv("MARKSYNC_CONFIG"); explicit != "" {
		if info, err := os.Stat(explicit); err == nil && !info.IsDir() {
			return explicit, nil
		}
		return "", errors.ConfigNotFound(explicit)
	}

	dir := paths.ConfigDir()
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.ConfigNotFound(dir).WithDetail("searchPath", dir)
}

// FormatForPath picks the encoding from the file extension. YAML is the default.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Marshal encodes settings in the given format.
func Marshal(settings *Settings, format Format) ([]byte, error) {
	if format == FormatTOML {
		return toml.Marshal(settings)
	}
	return yaml.Marshal(settings)
}

func unmarshal(data []byte, format Format, target interface{}) error {
	if format == FormatTOML {
		return toml.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
