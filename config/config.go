package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/paths"
	"github.com/grovetools/lore/util/pathutil"
)

// Defaults applied by SetDefaults.
const (
	DefaultListen               = "127.0.0.1:3000"
	DefaultDebounceMs           = 150
	DefaultStabilityThresholdMs = 150
	DefaultPollIntervalMs       = 50
)

// DefaultIgnore is the watcher ignore list used when none is configured.
var DefaultIgnore = []string{".git", "**/*.swp", "**/*~"}

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "LORE_CONFIG"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are searched in order inside paths.ConfigDir().
var configNames = []string{"lore.yml", "lore.yaml", "lore.toml"}

// overrideNames are merged over the main file when present next to it.
var overrideNames = []string{"lore.override.yml", "lore.override.yaml", "lore.override.toml"}

// Format is the syntax of a config document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the document format from a file extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and parses a lore configuration file
func Load(path string) (*Config, error) {
	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return fromDocument(raw)
}

// LoadFromBytes parses configuration from a byte array
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	raw, err := parseDocument(data, format)
	if err != nil {
		return nil, err
	}
	return fromDocument(raw)
}

// LoadDefault loads the configuration lore uses at startup:
// 1. $LORE_CONFIG or the first lore.{yml,yaml,toml} in the config directory
// 2. lore.override.* next to it, merged over the base file
// A missing config file is not an error; defaults are returned instead.
func LoadDefault() (*Config, error) {
	return LoadDefaultWithLogger(logrus.New())
}

// LoadDefaultWithLogger is LoadDefault with debug logging of the files used.
func LoadDefaultWithLogger(logger *logrus.Logger) (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			logger.Debug("No configuration file found, using defaults")
			cfg := &Config{}
			cfg.SetDefaults()
			return cfg, nil
		}
		return nil, err
	}
	return LoadWithOverrides(path, logger)
}

// LoadWithOverrides loads path and merges any override files found next to it.
func LoadWithOverrides(path string, logger *logrus.Logger) (*Config, error) {
	logger.WithField("path", path).Debug("Loading configuration")
	raw, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for _, name := range overrideNames {
		overridePath := filepath.Join(dir, name)
		if _, err := os.Stat(overridePath); err != nil {
			continue
		}
		logger.WithField("path", overridePath).Debug("Loading override configuration")
		override, err := readDocument(overridePath)
		if err != nil {
			return nil, err
		}
		raw = mergeMaps(raw, override)
	}

	cfg, err := fromDocument(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to load configuration").
			WithDetail("path", path)
	}
	return cfg, nil
}

// FindConfigFile returns $LORE_CONFIG when set, otherwise the first config
// file present in paths.ConfigDir(). A missing file yields CONFIG_NOT_FOUND.
func FindConfigFile() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		expanded, err := pathutil.Expand(p)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid "+EnvConfigPath)
		}
		// An explicit path must exist; Load reports it when it does not.
		return expanded, nil
	}

	dir := paths.ConfigDir()
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.ConfigNotFound(dir).WithDetail("searchPath", dir)
}

// Marshal renders cfg in the given format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	if format == FormatTOML {
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	raw, err := parseDocument(data, FormatForPath(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	return raw, nil
}

func parseDocument(data []byte, format Format) (map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))

	raw := make(map[string]interface{})
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(expanded, &raw)
	case FormatYAML, "":
		err = yaml.Unmarshal(expanded, &raw)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown config format %q", format))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to parse %s configuration", format))
	}
	if raw == nil {
		raw = make(map[string]interface{})
	}
	return raw, nil
}

// fromDocument validates a raw document against the schema, decodes it, and
// applies defaults and semantic checks.
func fromDocument(raw map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create mapstructure decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Workspace.Root == "" {
		c.Workspace.Root = paths.WorkspaceRoot()
	} else if strings.HasPrefix(c.Workspace.Root, "~") {
		expanded, err := pathutil.Expand(c.Workspace.Root)
		if err == nil {
			c.Workspace.Root = expanded
		}
	}
	if c.Server.Socket == "" {
		c.Server.Socket = paths.SocketPath()
	}
	if c.Watcher.DebounceMs == 0 {
		c.Watcher.DebounceMs = DefaultDebounceMs
	}
	if c.Watcher.StabilityThresholdMs == 0 {
		c.Watcher.StabilityThresholdMs = DefaultStabilityThresholdMs
	}
	if c.Watcher.PollIntervalMs == 0 {
		c.Watcher.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Watcher.Ignore == nil {
		c.Watcher.Ignore = append([]string(nil), DefaultIgnore...)
	}
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
