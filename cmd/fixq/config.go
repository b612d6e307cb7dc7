package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the fixq configuration file (~/.config/fixq/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	RegisterBits *int64 `yaml:"register_bits"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fixq", "config.yaml")
}

// loadConfig reads the config file if present. A missing file is not an
// error; a malformed one is.
func loadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyRegisterBits applies the config default when the flag was not set on
// the command line. Returns 0 when neither source set a width, letting the
// calibration document's own value win.
func applyRegisterBits(c *cli.Command, cfg Config) int {
	if c.IsSet("register-bits") || c.IsSet("bits") {
		return int(registerBits)
	}
	if cfg.RegisterBits != nil {
		return int(*cfg.RegisterBits)
	}
	return 0
}

func applyServerAddress(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
