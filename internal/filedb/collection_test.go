package filedb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID      string
	Title   string
	Count   int
	Created time.Time
}

type noteMapper struct{}

func (noteMapper) Columns() []string { return []string{"title", "count", "created_at"} }

func (noteMapper) ToRecord(n note) Record {
	return Record{
		IDField:      n.ID,
		"title":      n.Title,
		"count":      FormatInt(n.Count),
		"created_at": FormatTime(n.Created),
	}
}

func (noteMapper) FromRecord(r Record) (note, error) {
	count, err := ParseInt(r["count"])
	if err != nil {
		return note{}, err
	}
	created, err := ParseTime(r["created_at"])
	if err != nil {
		return note{}, err
	}
	return note{ID: r.ID(), Title: r["title"], Count: count, Created: created}, nil
}

func TestCollection_RoundTrip(t *testing.T) {
	c := NewCollection[note](newTestTable(t, "notes.csv"), noteMapper{})
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 10, 30, 0, 123, time.UTC)
	saved, err := c.Insert(ctx, note{Title: "vase", Count: 2, Created: at})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := c.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, note{ID: saved.ID, Title: "vase", Count: 2, Created: at}, got)
}

func TestCollection_UpdateUnderLock(t *testing.T) {
	c := NewCollection[note](newTestTable(t, "notes.csv"), noteMapper{})
	ctx := context.Background()

	saved, err := c.Insert(ctx, note{Title: "rug", Count: 1})
	require.NoError(t, err)

	got, err := c.Update(ctx, saved.ID, func(n *note) error {
		n.Count += 4
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Count)

	stop := errors.New("stop")
	_, err = c.Update(ctx, saved.ID, func(n *note) error {
		n.Count = 100
		return stop
	})
	assert.ErrorIs(t, err, stop)

	again, err := c.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Count)
}

const unreadableCSV = "id,title,count,created_at\n" +
	"n_1,ok,1,2026-01-02 10:00:00\n" +
	"n_2,bad count,three,\n" +
	"n_3,bad time,1,yesterday\n" +
	"n_4,ok too,2.0,2026-01-02T10:00:00Z\n"

func TestCollection_SkipsUnreadableRecords(t *testing.T) {
	tbl := newTestTable(t, "notes.csv")
	require.NoError(t, os.WriteFile(tbl.Path(), []byte(unreadableCSV), 0o644))
	c := NewCollection[note](tbl, noteMapper{})

	all, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "n_1", all[0].ID)
	assert.Equal(t, "n_4", all[1].ID)
	assert.Equal(t, 2, all[1].Count)

	_, err = c.Get(context.Background(), "n_2")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCollection_StrictFailsOnUnreadableRecord(t *testing.T) {
	tbl := newTestTable(t, "notes.csv", func(o *TableOptions) { o.Strict = true })
	require.NoError(t, os.WriteFile(tbl.Path(), []byte(unreadableCSV), 0o644))
	c := NewCollection[note](tbl, noteMapper{})

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCollection_Find(t *testing.T) {
	c := NewCollection[note](newTestTable(t, "notes.csv"), noteMapper{})
	ctx := context.Background()

	for _, title := range []string{"a", "b", "a"} {
		_, err := c.Insert(ctx, note{Title: title})
		require.NoError(t, err)
	}

	as, err := c.Find(ctx, func(n note) bool { return n.Title == "a" })
	require.NoError(t, err)
	assert.Len(t, as, 2)
}
