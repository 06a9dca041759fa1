package filedb

// IDField is the primary key column of every table.
const IDField = "id"

// Record is one row of a table keyed by column name. Every value is text;
// typed decoding happens in a Mapper.
type Record map[string]string

func (r Record) ID() string { return r[IDField] }

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
