package filedb

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx"
)

// Format reads and writes the tabular contents of one table file. The first
// row is always the header.
type Format interface {
	Decode(data []byte) (header []string, rows [][]string, err error)
	Encode(w io.Writer, header []string, rows [][]string) error
}

// FormatFor picks a Format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", "":
		return CSV{}, nil
	case ".xlsx":
		return XLSX{Sheet: "data"}, nil
	default:
		return nil, fmt.Errorf("filedb: unsupported table file %q", path)
	}
}

type CSV struct{}

func (CSV) Decode(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

func (CSV) Encode(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// XLSX stores the table on the first sheet of a workbook. Cells are written
// as strings so that ids and prices are never reinterpreted by the sheet.
type XLSX struct {
	Sheet string
}

func (XLSX) Decode(data []byte) ([]string, [][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, nil, err
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, nil, nil
	}

	sheet := f.Sheets[0]
	out := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			out = append(out, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			if c != nil {
				cells[i] = c.String()
			}
		}
		out = append(out, trimTrailingEmpty(cells))
	}
	return out[0], out[1:], nil
}

func (x XLSX) Encode(w io.Writer, header []string, rows [][]string) error {
	name := x.Sheet
	if name == "" {
		name = "data"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return err
	}

	addRow(sheet, header)
	for _, r := range rows {
		addRow(sheet, r)
	}
	return f.Write(w)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
