package tagstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// readCSVTable loads a CSV file into a table. Ragged rows are tolerated;
// the first record is treated as the header.
func readCSVTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading tag file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing tag file %q: %w", path, err)
	}
	if len(records) == 0 {
		return &table{}, nil
	}

	return &table{
		header: records[0],
		rows:   records[1:],
	}, nil
}

// writeCSVTable rewrites a CSV file from the table.
//
// The write goes to a temp file in the same directory followed by a
// rename, so a crash mid-write leaves the previous file intact (last
// successful write wins).
func writeCSVTable(path string, tbl *table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".opcburst-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(tbl.header)
	if writeErr == nil {
		writeErr = w.WriteAll(tbl.rows)
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}

	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("writing tag file: %w", writeErr)
	}

	// Carry the original file's permissions over to the replacement.
	if info, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmpPath, info.Mode())
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("replacing tag file: %w", err)
	}
	return nil
}
