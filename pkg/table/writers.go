package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// WriteCSV writes the header followed by every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WriteJSONLines writes one JSON object per row.
func (t *Table) WriteJSONLines(w io.Writer) error {
	enc := json.NewEncoder(w)
	for i := range t.Rows {
		if err := enc.Encode(t.Record(i)); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return nil
}
