package store

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ConfigKey is one of the fixed set of keys the config table accepts.
// Anything else is rejected by SetConfig with ErrValidation.
type ConfigKey string

const (
	ConfigMaxRetries              ConfigKey = "max_retries"
	ConfigBackoffBase             ConfigKey = "backoff_base"
	ConfigBackoffMaxDelay         ConfigKey = "backoff_max_delay"
	ConfigWorkerPollInterval      ConfigKey = "worker_poll_interval"
	ConfigWorkerHeartbeatInterval ConfigKey = "worker_heartbeat_interval"
	ConfigJobTimeout              ConfigKey = "job_timeout"
	ConfigLogLevel                ConfigKey = "log_level"
	ConfigAdminEnabled            ConfigKey = "admin_enabled"
	ConfigAdminAddr               ConfigKey = "admin_addr"
	ConfigAdminJWTSecret          ConfigKey = "admin_jwt_secret"
	ConfigAdminRateLimitRPS       ConfigKey = "admin_rate_limit_rps"
)

// defaults seeds the config table on first Open against a fresh database.
// db_path is deliberately absent: it lives only in the bootstrap file
// (internal/config), never in this table, so moving the database file
// never requires an UPDATE against the database file itself.
var defaults = map[ConfigKey]string{
	ConfigMaxRetries:              "3",
	ConfigBackoffBase:             "2",
	ConfigBackoffMaxDelay:         "3600s",
	ConfigWorkerPollInterval:      "1s",
	ConfigWorkerHeartbeatInterval: "5s",
	ConfigJobTimeout:              "300s",
	ConfigLogLevel:                "info",
	ConfigAdminEnabled:            "false",
	ConfigAdminAddr:               "127.0.0.1:7850",
	ConfigAdminRateLimitRPS:       "50",
}

// validators checks a candidate value for a key before it is written.
var validators = map[ConfigKey]func(string) error{
	ConfigMaxRetries:              validatePositiveInt,
	ConfigBackoffBase:             validatePositiveFloat,
	ConfigBackoffMaxDelay:         validateDuration,
	ConfigWorkerPollInterval:      validateDuration,
	ConfigWorkerHeartbeatInterval: validateDuration,
	ConfigJobTimeout:              validateDuration,
	ConfigLogLevel:                validateLogLevel,
	ConfigAdminEnabled:            validateBool,
	ConfigAdminAddr:               validateNonEmpty,
	ConfigAdminJWTSecret:          validateNonEmpty,
	ConfigAdminRateLimitRPS:       validatePositiveInt,
}

// SeedDefaults writes any default key not already present. Called once from
// Open, after migrations, so a brand-new database starts fully configured.
func (s *Store) SeedDefaults(ctx context.Context, randomJWTSecret string) error {
	seed := make(map[ConfigKey]string, len(defaults)+1)
	for k, v := range defaults {
		seed[k] = v
	}
	seed[ConfigAdminJWTSecret] = randomJWTSecret

	return withBusyRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin seed tx: %w", err)
		}
		defer tx.Rollback()

		for k, v := range seed {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO config (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO NOTHING
			`, string(k), v)
			if err != nil {
				return fmt.Errorf("seed config %s: %w", k, err)
			}
		}
		return tx.Commit()
	})
}

// GetConfig reads a single key's raw value. Returns ErrNotFound if the key
// has never been set (should not happen for a store that ran SeedDefaults).
func (s *Store) GetConfig(ctx context.Context, key ConfigKey) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, string(key)).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// AllConfig returns every key/value pair currently stored.
func (s *Store) AllConfig(ctx context.Context) (map[ConfigKey]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	out := make(map[ConfigKey]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		out[ConfigKey(k)] = v
	}
	return out, rows.Err()
}

// SetConfig validates and writes a single key. Unknown keys and
// out-of-range values are rejected with ErrValidation, never silently
// clamped: the Worker Loop re-reads this table every cycle and a clamped
// value would surprise whoever set it.
func (s *Store) SetConfig(ctx context.Context, key ConfigKey, value string) error {
	validate, ok := validators[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", ErrValidation, key)
	}
	if err := validate(value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, key, err)
	}

	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO config (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, string(key), value)
		if err != nil {
			return fmt.Errorf("set config %s: %w", key, err)
		}
		return nil
	})
}

// ResetConfig restores a single key to its default. admin_jwt_secret has no
// static default and is rejected; rotating it is a distinct operation
// (not yet exposed here) so a reset never silently invalidates live tokens.
func (s *Store) ResetConfig(ctx context.Context, key ConfigKey) error {
	def, ok := defaults[key]
	if !ok {
		return fmt.Errorf("%w: %s has no default to reset to", ErrValidation, key)
	}
	return s.SetConfig(ctx, key, def)
}

func validatePositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %v", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validatePositiveFloat(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("not a number: %v", err)
	}
	if f < 1 {
		return fmt.Errorf("backoff base must be at least 1, got %v", f)
	}
	return nil
}

func validateDuration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("not a duration: %v", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateBool(v string) error {
	_, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("not a bool: %v", err)
	}
	return nil
}

func validateNonEmpty(v string) error {
	if v == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

func validateLogLevel(v string) error {
	switch v {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of debug, info, warn, error; got %q", v)
	}
}
