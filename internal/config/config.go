// Package config loads the small bootstrap file QueueCTL reads before it
// can open its database: just enough to find the database file. Every
// other setting lives in the Store's config table (see internal/store).
// The Worker Loop re-reads its settings from that table on each cycle, so
// changing them needs no worker restart; log_level and the admin_* keys
// are read once when a process starts.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Bootstrap is the handful of settings needed before a Store exists.
type Bootstrap struct {
	DBPath string
}

// Load reads queuectl.yaml from the current directory, ./config, or
// $XDG_CONFIG_HOME/queuectl, in that order, falling back to defaults when
// no file is found. QUEUECTL_DB_PATH overrides whatever the file says.
func Load() (*Bootstrap, error) {
	v := viper.New()
	v.SetConfigName("queuectl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetDefault("db_path", defaultDBPath())

	v.SetEnvPrefix("QUEUECTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Bootstrap{DBPath: v.GetString("db_path")}, nil
}

func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "queuectl"), nil
}

func defaultDBPath() string {
	dir, err := configDir()
	if err != nil {
		return "queuectl.db"
	}
	return filepath.Join(dir, "queuectl.db")
}
