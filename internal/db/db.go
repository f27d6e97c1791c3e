package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	stateDir   = ".shiftdesk"
	reportFile = "shiftdesk.db"

	defaultBusyTimeout = 5 * time.Second
)

// Config locates the report store. Path wins over Workspace.
type Config struct {
	Workspace   string
	Path        string
	ReadOnly    bool
	BusyTimeout time.Duration
}

func (c Config) location() string {
	if c.Path != "" {
		return c.Path
	}
	return Path(c.Workspace)
}

func (c Config) dsn() string {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", timeout.Milliseconds()),
	}
	if c.ReadOnly {
		pragmas = append(pragmas, "mode=ro")
	}
	return "file:" + c.location() + "?" + strings.Join(pragmas, "&")
}

// EnsureWorkspace creates <workspace>/.shiftdesk and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(orDot(workspace), stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// Open returns a handle on the report store. All statements share one
// connection so report, entry and notification writes never interleave.
// A read-only open requires the file to exist.
func Open(cfg Config) (*sql.DB, error) {
	switch {
	case cfg.ReadOnly:
		if _, err := os.Stat(cfg.location()); err != nil {
			return nil, fmt.Errorf("report store: %w", err)
		}
	case cfg.Path == "":
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path is where a workspace keeps its report store.
func Path(workspace string) string {
	return filepath.Join(orDot(workspace), stateDir, reportFile)
}

func orDot(workspace string) string {
	if workspace == "" {
		return "."
	}
	return workspace
}
