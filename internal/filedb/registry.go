package filedb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	Users     = "users"
	Products  = "products"
	Orders    = "orders"
	Carts     = "carts"
	Wishlists = "wishlists"
	Reviews   = "reviews"
)

var idPrefixes = map[string]string{
	Users:     "u_",
	Products:  "p_",
	Orders:    "o_",
	Carts:     "c_",
	Wishlists: "w_",
	Reviews:   "r_",
}

// Config names the data directory and the file backing each table. A table
// without an entry in Files is stored as "<name>.csv".
type Config struct {
	Dir         string
	Files       map[string]string
	LockTimeout time.Duration
	Strict      bool
}

// DB is the table registry. It is built once at startup and shared.
type DB struct {
	dir    string
	tables map[string]*Table
}

func Open(cfg Config, log *zap.Logger, m *Metrics) (*DB, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("filedb: data dir is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("filedb: create data dir: %w", err)
	}

	locker := NewLocker(cfg.LockTimeout, m)
	db := &DB{dir: cfg.Dir, tables: make(map[string]*Table, len(idPrefixes))}

	for name, prefix := range idPrefixes {
		file := cfg.Files[name]
		if file == "" {
			file = name + ".csv"
		}
		t, err := NewTable(TableOptions{
			Name:     name,
			Path:     filepath.Join(cfg.Dir, file),
			IDPrefix: prefix,
			Locker:   locker,
			Strict:   cfg.Strict,
			Log:      log,
			Metrics:  m,
		})
		if err != nil {
			return nil, err
		}
		db.tables[name] = t
	}

	log.Info("file store opened", zap.String("dir", cfg.Dir), zap.Strings("tables", db.Names()))
	return db, nil
}

// Table returns the registered table or ErrNotFound.
func (db *DB) Table(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: table %q", ErrNotFound, name)
	}
	return t, nil
}

// MustTable is Table for wiring code where a missing table is a bug.
func (db *DB) MustTable(name string) *Table {
	t, err := db.Table(name)
	if err != nil {
		panic(err)
	}
	return t
}

func (db *DB) Names() []string {
	out := make([]string, 0, len(db.tables))
	for n := range db.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (db *DB) Dir() string { return db.dir }

// Ping checks that the data directory still accepts writes.
func (db *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(db.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("filedb: data dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
