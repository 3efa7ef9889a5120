package db

import (
	"fmt"
	"net/url"
	"strings"
)

// Driver returns the database/sql driver name and data source for a DSN.
// sqlite://path and file: DSNs select SQLite; postgres:// and
// postgresql:// select pgx.
func Driver(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty DSN")
	}
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN %q has no path", dsn)
		}
		return "sqlite", path, nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, nil
	}
	if !strings.Contains(dsn, "://") {
		// key=value connection strings
		return "pgx", dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	return "pgx", dsn, nil
}
