package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tessera/pkg/errors"
)

// Load decodes the YAML file at path into out after expanding ${VAR}
// references from the environment.
func Load(path string, out interface{}) error {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal([]byte(expandEnv(string(raw))), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", path)
	}
	return nil
}

// LoadConfig reads a configuration file over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes in as YAML to path.
func Save(path string, in interface{}) error {
	out, err := yaml.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}

// expandEnv replaces each ${NAME} with the value of NAME, empty if unset.
// Expanded text is not rescanned and an unterminated ${ is kept as is.
func expandEnv(s string) string {
	var b strings.Builder
	for s != "" {
		open := strings.Index(s, "${")
		if open < 0 {
			break
		}
		n := strings.IndexByte(s[open+2:], '}')
		if n < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteString(os.Getenv(s[open+2 : open+2+n]))
		s = s[open+3+n:]
	}
	b.WriteString(s)
	return b.String()
}
