package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ohcupload/ohcupload/internal/config"
)

const driverLibsql = "libsql"

const memoryPath = ":memory:"

var errNotInitialized = errors.New("store is not initialized")

// Store holds the quota ledger database. Embedded files and remote libsql
// URLs are both supported.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the configured ledger and verifies it answers.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	dsn, local, err := resolveDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open quota ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping quota ledger: %w", err)
	}
	if dsn == memoryPath {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if local {
		if err := tuneLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: driver}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

func (s *Store) ready() error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return nil
}

// tuneLocal serializes writers on an embedded file: a watch daemon and a
// one-shot quota reset may hold the same ledger open.
func tuneLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	// Both pragmas return a row, so they are queried rather than executed.
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("set ledger journal mode: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&timeout); err != nil {
		return fmt.Errorf("set ledger busy timeout: %w", err)
	}
	return nil
}

// resolveDSN turns the store config into a libsql DSN. local reports an
// embedded file that needs tuneLocal.
func resolveDSN(cfg config.StoreConfig) (dsn string, local bool, err error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		dsn, err = withAuthToken(remote, cfg.AuthToken)
		return dsn, false, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return "", false, errors.New("store path or url is required")
	case path == memoryPath:
		return path, false, nil
	case strings.HasPrefix(path, "libsql:"):
		return path, false, nil
	case strings.HasPrefix(path, "file:"):
		parsed, perr := url.Parse(path)
		if perr != nil {
			return "", false, fmt.Errorf("invalid store path: %w", perr)
		}
		file := parsed.Path
		if file == "" {
			file = parsed.Opaque
		}
		if err := ensureParentDir(strings.TrimPrefix(file, "//")); err != nil {
			return "", false, err
		}
		return path, true, nil
	default:
		if err := ensureParentDir(path); err != nil {
			return "", false, err
		}
		return "file:" + filepath.Clean(path), true, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if path == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- ledger directory sits under the user data dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
