package filedb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	cases := map[string]int64{
		"":      0,
		"0":     0,
		"25":    2500,
		"25.00": 2500,
		"19.99": 1999,
		"0.1":   10,
		" 3.5 ": 350,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"abc", "NaN", "1e300"} {
		_, err := ParseCents(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "25.00", FormatCents(2500))
	assert.Equal(t, "19.99", FormatCents(1999))
	assert.Equal(t, "-0.05", FormatCents(-5))
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt("3.0")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ParseInt("3.5")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-01-02T10:00:00Z", "2026-01-02 10:00:00", "2026-01-02T12:00:00+02:00"} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	zero, err := ParseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestLists(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a.png", "b.jpg"}, SplitList("a.png; b.jpg;"))
	assert.Equal(t, "a.png;b.jpg", JoinList([]string{"a.png", "b.jpg"}))
}
