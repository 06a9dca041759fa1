package filedb

import "fmt"

// Tx is the in-memory view of a table inside Mutate. Changes are written
// to disk only when the Mutate callback returns nil.
type Tx struct {
	table *Table
	snap  *snapshot
	dirty bool
}

// Records returns copies of every readable row.
func (tx *Tx) Records() []Record {
	out := make([]Record, 0, len(tx.snap.records))
	for _, r := range tx.snap.records {
		out = append(out, r.Clone())
	}
	return out
}

func (tx *Tx) Get(id string) (Record, error) {
	i := tx.snap.index(id)
	if i < 0 {
		return nil, tx.table.notFound(id)
	}
	return tx.snap.records[i].Clone(), nil
}

func (tx *Tx) Insert(rec Record) (Record, error) {
	rec = rec.Clone()

	id := rec.ID()
	switch {
	case id != "":
		if tx.snap.index(id) >= 0 {
			return nil, fmt.Errorf("%w: %s id %q already exists", ErrConflict, tx.table.name, id)
		}
	default:
		for attempt := 0; ; attempt++ {
			if attempt == maxIDAttempts {
				return nil, fmt.Errorf("%w: %s could not generate a unique id", ErrConflict, tx.table.name)
			}
			id = tx.table.newID()
			if tx.snap.index(id) < 0 {
				break
			}
		}
		rec[IDField] = id
	}

	tx.snap.records = append(tx.snap.records, rec)
	tx.dirty = true
	return rec.Clone(), nil
}

func (tx *Tx) Update(id string, patch Record) (Record, error) {
	i := tx.snap.index(id)
	if i < 0 {
		return nil, tx.table.notFound(id)
	}

	rec := tx.snap.records[i]
	for k, v := range patch {
		if k == IDField {
			continue
		}
		rec[k] = v
	}
	tx.dirty = true
	return rec.Clone(), nil
}

func (tx *Tx) Delete(id string) error {
	i := tx.snap.index(id)
	if i < 0 {
		return tx.table.notFound(id)
	}
	tx.snap.records = append(tx.snap.records[:i], tx.snap.records[i+1:]...)
	tx.dirty = true
	return nil
}
