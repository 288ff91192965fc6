// Package config reads the environment configuration spec.md §6 lists, with
// an optional semitexa.toml overlay for operational settings that are not
// themselves part of the declared schema (identifier pattern, ignored
// tables, pool size). Env vars always win over the file, matching the
// precedence the teacher's CLI gives command flags over defaults.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the fully resolved runtime configuration for one process.
type Config struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Charset  string

	CLIHost string
	CLIPort int

	PoolSize int

	IgnoreTables []string

	IdentifierPattern string
}

// fileOverlay is the shape of an optional semitexa.toml at the repository
// root. Every field is optional; env vars in Load always take precedence.
type fileOverlay struct {
	IdentifierPattern string   `toml:"identifier_pattern"`
	IgnoreTables      []string `toml:"ignore_tables"`
	PoolSize          int      `toml:"pool_size"`
}

// Load resolves configuration from, in increasing precedence: built-in
// defaults, an optional semitexa.toml at tomlPath (silently skipped if
// absent), then environment variables.
func Load(tomlPath string) (*Config, error) {
	cfg := &Config{
		Driver:            envOr("DB_DRIVER", "mysql"),
		Host:              envOr("DB_HOST", "127.0.0.1"),
		Port:              envIntOr("DB_PORT", 3306),
		Database:          envOr("DB_DATABASE", "semitexa"),
		Username:          envOr("DB_USERNAME", "root"),
		Password:          envOr("DB_PASSWORD", ""),
		Charset:           envOr("DB_CHARSET", "utf8mb4"),
		PoolSize:          envIntOr("DB_POOL_SIZE", 10),
		IdentifierPattern: `^[A-Za-z_][A-Za-z0-9_]*$`,
	}

	if tomlPath != "" {
		if _, err := os.Stat(tomlPath); err == nil {
			var overlay fileOverlay
			if _, err := toml.DecodeFile(tomlPath, &overlay); err != nil {
				return nil, err
			}
			if overlay.IdentifierPattern != "" {
				cfg.IdentifierPattern = overlay.IdentifierPattern
			}
			if len(overlay.IgnoreTables) > 0 {
				cfg.IgnoreTables = overlay.IgnoreTables
			}
			if overlay.PoolSize > 0 {
				cfg.PoolSize = overlay.PoolSize
			}
		}
	}

	cfg.PoolSize = envIntOr("DB_POOL_SIZE", cfg.PoolSize)
	if v, ok := os.LookupEnv("ORM_IGNORE_TABLES"); ok {
		cfg.IgnoreTables = splitNonEmpty(v, ",")
	}

	cfg.CLIHost = envOr("DB_CLI_HOST", cfg.Host)
	cfg.CLIPort = envIntOr("DB_CLI_PORT", cfg.Port)
	if !RunningInContainer() {
		cfg.Host = cfg.CLIHost
		cfg.Port = cfg.CLIPort
	}

	return cfg, nil
}

// RunningInContainer reports whether the process appears to run inside a
// container, the signal DB_CLI_HOST/DB_CLI_PORT overrides are keyed on
// (spec.md §6).
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// DSN renders the go-sql-driver/mysql data source name for this config.
func (c *Config) DSN() string {
	var b strings.Builder
	b.WriteString(c.Username)
	if c.Password != "" {
		b.WriteByte(':')
		b.WriteString(c.Password)
	}
	b.WriteByte('@')
	b.WriteString("tcp(")
	b.WriteString(c.Host)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.Port))
	b.WriteString(")/")
	b.WriteString(c.Database)
	b.WriteString("?charset=")
	b.WriteString(c.Charset)
	b.WriteString("&parseTime=true")
	return b.String()
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
