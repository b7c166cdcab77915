package db

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/rqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const defaultRqlitePort = "4001"

// ParseRqliteURL accepts http(s) rqlite URLs, adding the default port when
// none is given.
func ParseRqliteURL(s string) (u RqliteURL, err error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return u, fmt.Errorf("db: invalid rqlite URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return u, fmt.Errorf("db: invalid rqlite URL: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Port() == "" {
		parsed.Host = parsed.Hostname() + ":" + defaultRqlitePort
	}
	return RqliteURL{URL: parsed}, nil
}

type RqliteURL struct {
	URL *url.URL
}

// DataSourceName is the URL passed to gorqlite.Open.
func (ru RqliteURL) DataSourceName() string {
	return ru.URL.String()
}

// MigrateDatabaseURL is the same server expressed for the golang-migrate
// rqlite driver.
func (ru RqliteURL) MigrateDatabaseURL() string {
	u := &url.URL{
		Scheme: "rqlite",
		User:   ru.URL.User,
		Host:   ru.URL.Host,
	}
	if ru.URL.Scheme == "http" {
		u.RawQuery = url.Values{"x-connect-insecure": []string{"true"}}.Encode()
	}
	return u.String()
}

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration and returns the resulting schema
// version.
func Migrate(u RqliteURL) (version uint, err error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("db: failed to read migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, u.MigrateDatabaseURL())
	if err != nil {
		return 0, fmt.Errorf("db: failed to connect for migration: %w", err)
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("db: migrate up failed: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("db: failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("db: schema version %d is dirty", version)
	}
	return version, nil
}
