package filedb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Mapper converts a domain value to and from its table record.
type Mapper[T any] interface {
	Columns() []string
	ToRecord(v T) Record
	FromRecord(r Record) (T, error)
}

// Collection is a typed view over a Table. Records whose fields do not
// parse are skipped on List and logged, or fail the read in strict mode.
type Collection[T any] struct {
	table  *Table
	mapper Mapper[T]
}

func NewCollection[T any](t *Table, m Mapper[T]) *Collection[T] {
	t.DeclareColumns(m.Columns()...)
	return &Collection[T]{table: t, mapper: m}
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	recs, err := c.table.List(ctx)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(recs)
}

// Find returns every readable value for which keep reports true.
func (c *Collection[T]) Find(ctx context.Context, keep func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	rec, err := c.table.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.decodeOne(rec)
}

func (c *Collection[T]) Insert(ctx context.Context, v T) (T, error) {
	rec, err := c.table.Insert(ctx, c.mapper.ToRecord(v))
	if err != nil {
		var zero T
		return zero, err
	}
	return c.decodeOne(rec)
}

// Update loads the value for id, applies change and stores the result, all
// under one exclusive lock. An error from change aborts without writing.
func (c *Collection[T]) Update(ctx context.Context, id string, change func(v *T) error) (T, error) {
	var out T
	err := c.Mutate(ctx, func(tx *CollectionTx[T]) error {
		v, err := tx.Get(id)
		if err != nil {
			return err
		}
		if err := change(&v); err != nil {
			return err
		}
		out, err = tx.Put(id, v)
		return err
	})
	return out, err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.table.Delete(ctx, id)
}

func (c *Collection[T]) Mutate(ctx context.Context, fn func(tx *CollectionTx[T]) error) error {
	return c.table.Mutate(ctx, func(raw *Tx) error {
		return fn(&CollectionTx[T]{raw: raw, c: c})
	})
}

func (c *Collection[T]) decodeAll(recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		v, err := c.mapper.FromRecord(r)
		if err != nil {
			if c.table.strict {
				return nil, fmt.Errorf("%w: %s %q: %v", ErrCorrupt, c.table.name, r.ID(), err)
			}
			c.table.metrics.malformedRow(c.table.name)
			c.table.log.Warn("skipping unreadable record", zap.String("id", r.ID()), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) decodeOne(r Record) (T, error) {
	v, err := c.mapper.FromRecord(r)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s %q: %v", ErrCorrupt, c.table.name, r.ID(), err)
	}
	return v, nil
}

// CollectionTx is the typed counterpart of Tx.
type CollectionTx[T any] struct {
	raw *Tx
	c   *Collection[T]
}

func (tx *CollectionTx[T]) All() ([]T, error) {
	return tx.c.decodeAll(tx.raw.Records())
}

func (tx *CollectionTx[T]) Get(id string) (T, error) {
	rec, err := tx.raw.Get(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return tx.c.decodeOne(rec)
}

func (tx *CollectionTx[T]) Insert(v T) (T, error) {
	rec, err := tx.raw.Insert(tx.c.mapper.ToRecord(v))
	if err != nil {
		var zero T
		return zero, err
	}
	return tx.c.decodeOne(rec)
}

// Put overwrites the mapped columns of id with v. Columns the mapper does
// not know about are left as they are in the file.
func (tx *CollectionTx[T]) Put(id string, v T) (T, error) {
	rec, err := tx.raw.Update(id, tx.c.mapper.ToRecord(v))
	if err != nil {
		var zero T
		return zero, err
	}
	return tx.c.decodeOne(rec)
}

func (tx *CollectionTx[T]) Delete(id string) error {
	return tx.raw.Delete(id)
}
