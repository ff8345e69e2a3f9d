package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"mangashelf/pkg/logging"
)

type Config struct {
	Path string
}

func DefaultConfig() Config {
	if p := os.Getenv("MANGASHELF_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.mangashelf/data.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".mangashelf", "data.db"),
	}
}

// MemoryConfig returns a config for a named shared-cache in-memory database.
// Connections opened with the same name see the same data.
func MemoryConfig(name string) Config {
	return Config{Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)}
}

func (c Config) inMemory() bool {
	return c.Path == ":memory:" || strings.Contains(c.Path, "mode=memory")
}

func EnsureDataDir(cfg Config) error {
	if cfg.inMemory() {
		return nil
	}
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

// dsn applies per-connection pragmas through driver parameters so every
// pooled connection gets them, not just the first one.
func dsn(cfg Config) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if !cfg.inMemory() {
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(cfg.Path, "?") {
		return cfg.Path + "&" + params
	}
	if strings.HasPrefix(cfg.Path, "file:") {
		return cfg.Path + "?" + params
	}
	return "file:" + cfg.Path + "?" + params
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.inMemory() {
		// a shared-cache memory db disappears when its last connection closes
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Path).Msg("failed to open db")
	}
	return db
}
