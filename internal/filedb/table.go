package filedb

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIDAttempts = 8

// Table is the record store for one table file. Every call reads the whole
// file; writes rewrite it through a temp file and a rename, so a reader
// never sees a partially written table.
type Table struct {
	name     string
	path     string
	idPrefix string
	format   Format
	locker   *Locker
	strict   bool
	log      *zap.Logger
	metrics  *Metrics

	colMu   sync.RWMutex
	columns []string

	// newID is swapped in tests.
	newID func() string
}

type TableOptions struct {
	Name     string
	Path     string
	IDPrefix string
	Format   Format
	Locker   *Locker
	Strict   bool
	Log      *zap.Logger
	Metrics  *Metrics
}

func NewTable(o TableOptions) (*Table, error) {
	if o.Name == "" || o.Path == "" {
		return nil, errors.New("filedb: table name and path are required")
	}
	if o.Format == nil {
		f, err := FormatFor(o.Path)
		if err != nil {
			return nil, err
		}
		o.Format = f
	}
	if o.Locker == nil {
		o.Locker = NewLocker(DefaultLockTimeout, o.Metrics)
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	prefix := o.IDPrefix
	return &Table{
		name:     o.Name,
		path:     o.Path,
		idPrefix: prefix,
		format:   o.Format,
		locker:   o.Locker,
		strict:   o.Strict,
		log:      o.Log.With(zap.String("table", o.Name)),
		metrics:  o.Metrics,
		columns:  []string{IDField},
		newID: func() string {
			return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}, nil
}

func (t *Table) Name() string { return t.name }
func (t *Table) Path() string { return t.path }

// DeclareColumns fixes the leading column order used when the table is
// written. Columns already present in the file are kept after them.
func (t *Table) DeclareColumns(cols ...string) {
	out := []string{IDField}
	for _, c := range cols {
		if c != IDField && !contains(out, c) {
			out = append(out, c)
		}
	}

	t.colMu.Lock()
	t.columns = out
	t.colMu.Unlock()
}

func (t *Table) declared() []string {
	t.colMu.RLock()
	defer t.colMu.RUnlock()
	return append([]string(nil), t.columns...)
}

func (t *Table) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := t.locker.WithLock(ctx, t.name, t.path, Shared, func() error {
		snap, err := t.load()
		if err != nil {
			return err
		}
		out = make([]Record, 0, len(snap.records))
		for _, r := range snap.records {
			out = append(out, r.Clone())
		}
		return nil
	})
	return out, err
}

func (t *Table) Get(ctx context.Context, id string) (Record, error) {
	var out Record
	err := t.locker.WithLock(ctx, t.name, t.path, Shared, func() error {
		snap, err := t.load()
		if err != nil {
			return err
		}
		i := snap.index(id)
		if i < 0 {
			return t.notFound(id)
		}
		out = snap.records[i].Clone()
		return nil
	})
	return out, err
}

// Insert stores rec and returns it with its id. A missing id is generated;
// a supplied id that already exists is ErrConflict.
func (t *Table) Insert(ctx context.Context, rec Record) (Record, error) {
	var out Record
	err := t.Mutate(ctx, func(tx *Tx) error {
		r, err := tx.Insert(rec)
		out = r
		return err
	})
	return out, err
}

// Update merges patch into the row with the given id. The id itself is
// never changed.
func (t *Table) Update(ctx context.Context, id string, patch Record) (Record, error) {
	var out Record
	err := t.Mutate(ctx, func(tx *Tx) error {
		r, err := tx.Update(id, patch)
		out = r
		return err
	})
	return out, err
}

func (t *Table) Delete(ctx context.Context, id string) error {
	return t.Mutate(ctx, func(tx *Tx) error {
		return tx.Delete(id)
	})
}

// Mutate runs fn against the current contents under the exclusive lock and
// writes the table back if fn returned nil and changed something. An error
// from fn discards every change it made.
func (t *Table) Mutate(ctx context.Context, fn func(tx *Tx) error) error {
	return t.locker.WithLock(ctx, t.name, t.path, Exclusive, func() error {
		snap, err := t.load()
		if err != nil {
			return err
		}

		tx := &Tx{table: t, snap: snap}
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.dirty {
			return nil
		}

		err = t.save(snap)
		t.metrics.write(t.name, err)
		return err
	})
}

func (t *Table) notFound(id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, t.name, id)
}

type snapshot struct {
	header  []string
	records []Record
	// corrupt rows are kept out of reads. They are written back verbatim
	// while the header is unchanged and moved to the rejects file otherwise.
	corrupt [][]string
}

func (s *snapshot) index(id string) int {
	for i, r := range s.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (t *Table) load() (*snapshot, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &snapshot{header: t.declared()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filedb: read %s: %w", t.name, err)
	}

	header, rows, err := t.format.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, t.name, err)
	}
	if len(header) == 0 {
		return &snapshot{header: t.declared()}, nil
	}
	if !contains(header, IDField) {
		return nil, fmt.Errorf("%w: %s: header has no %q column", ErrCorrupt, t.name, IDField)
	}

	snap := &snapshot{header: header, records: make([]Record, 0, len(rows))}
	for i, row := range rows {
		if blank(row) {
			continue
		}

		rec, ok := decodeRow(header, row)
		if !ok {
			// +2: one for the header, one for 1-based line numbers.
			if err := t.malformed(i+2, row); err != nil {
				return nil, err
			}
			snap.corrupt = append(snap.corrupt, row)
			continue
		}
		snap.records = append(snap.records, rec)
	}
	return snap, nil
}

func decodeRow(header, row []string) (Record, bool) {
	if len(row) > len(header) {
		return nil, false
	}
	rec := make(Record, len(header))
	for j, col := range header {
		if j < len(row) {
			rec[col] = row[j]
		} else {
			rec[col] = ""
		}
	}
	return rec, rec.ID() != ""
}

func (t *Table) malformed(line int, row []string) error {
	if t.strict {
		return fmt.Errorf("%w: %s line %d has %d cells", ErrCorrupt, t.name, line, len(row))
	}
	t.metrics.malformedRow(t.name)
	t.log.Warn("skipping malformed row", zap.Int("line", line), zap.Strings("cells", row))
	return nil
}

func (t *Table) save(snap *snapshot) error {
	header := t.writeHeader(snap)

	corrupt := snap.corrupt
	if len(corrupt) > 0 && !slices.Equal(header, snap.header) {
		// The cells were read against the old header; under the new one
		// they would decode as different fields.
		if err := t.reject(snap.header, corrupt); err != nil {
			return err
		}
		corrupt = nil
	}

	rows := make([][]string, 0, len(snap.records)+len(corrupt))
	for _, rec := range snap.records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = rec[col]
		}
		rows = append(rows, row)
	}
	rows = append(rows, corrupt...)

	err := writeAtomic(t.path, func(w io.Writer) error {
		return t.format.Encode(w, header, rows)
	})
	if err != nil {
		t.log.Error("table write failed", zap.Error(err))
		return fmt.Errorf("filedb: write %s: %w", t.name, err)
	}
	return nil
}

// RejectsPath is the CSV file that collects malformed rows dropped from the
// table, e.g. "products.rejects.csv" next to "products.xlsx".
func (t *Table) RejectsPath() string {
	return strings.TrimSuffix(t.path, filepath.Ext(t.path)) + ".rejects.csv"
}

// reject appends rows to the rejects file. A new file starts with the
// header the rows were read against.
func (t *Table) reject(header []string, rows [][]string) (err error) {
	f, err := os.OpenFile(t.RejectsPath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("filedb: open rejects for %s: %w", t.name, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("filedb: close rejects for %s: %w", t.name, cerr)
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("filedb: stat rejects for %s: %w", t.name, err)
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("filedb: write rejects for %s: %w", t.name, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("filedb: write rejects for %s: %w", t.name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("filedb: sync rejects for %s: %w", t.name, err)
	}

	t.log.Warn("moved malformed rows to rejects file",
		zap.Int("rows", len(rows)),
		zap.String("path", t.RejectsPath()),
	)
	return nil
}

// writeHeader is the declared columns, then any other column already in the
// file, then keys that only appear in records, sorted.
func (t *Table) writeHeader(snap *snapshot) []string {
	header := t.declared()
	for _, c := range snap.header {
		if !contains(header, c) {
			header = append(header, c)
		}
	}

	var extra []string
	for _, rec := range snap.records {
		for k := range rec {
			if !contains(header, k) && !contains(extra, k) {
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func writeAtomic(path string, encode func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return err
	}

	bw := bufio.NewWriter(tmp)
	if err = encode(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
