package tagstore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names recognised in the tag file. The Tag column is required on
// input; the other three are created on first merge if absent.
const (
	ColumnTag       = "Tag"
	ColumnValue     = "Value"
	ColumnStatus    = "Status"
	ColumnTimestamp = "Timestamp"
)

// Result holds the merge payload for one tag: the read-back value, the
// server's quality code, and the display-formatted timestamp.
type Result struct {
	Value     any
	Status    string
	Timestamp string
}

// Store is a tag file opened for load and merge operations.
//
// The file is read in full on every operation; no row data is cached
// between calls.
type Store struct {
	path string
	ext  string
}

// Open validates the file path and returns a Store for it.
//
// The file itself is not read until LoadTags or Merge; a missing file
// surfaces there as a read error.
//
// Parameters:
//   - path: Path to a .csv or .xlsx tag file
//
// Returns:
//   - *Store: Store bound to the file
//   - error: ErrUnsupportedFormat for any other extension
func Open(path string) (*Store, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".xlsx":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	return &Store{path: path, ext: ext}, nil
}

// Path returns the file path this store is bound to.
func (s *Store) Path() string {
	return s.path
}

// LoadTags returns the Tag column as an ordered list.
//
// Values are whitespace-trimmed; empty cells are skipped; duplicates are
// preserved in order (each duplicate row is re-read and re-written
// independently on merge).
//
// Returns:
//   - []string: Ordered tag list, possibly empty
//   - error: If the file cannot be read or has no Tag column
func (s *Store) LoadTags() ([]string, error) {
	tbl, err := s.read()
	if err != nil {
		return nil, err
	}

	tagCol := tbl.columnIndex(ColumnTag)
	if tagCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTagColumn, s.path)
	}

	tags := make([]string, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		tag := strings.TrimSpace(cellAt(row, tagCol))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Merge overwrites the Value/Status/Timestamp cells of every row whose
// Tag is a key in results, creating those columns (initialised empty) if
// the file does not have them yet, and rewrites the whole file. Rows for
// tags outside results are left untouched, so a partial batch never
// disturbs earlier results.
//
// Merging the same results twice yields the same file as merging once.
//
// Parameters:
//   - results: Tag-keyed merge payload for the just-completed batch
//
// Returns:
//   - error: If the file cannot be read or rewritten
func (s *Store) Merge(results map[string]Result) error {
	tbl, err := s.read()
	if err != nil {
		return err
	}

	tagCol := tbl.columnIndex(ColumnTag)
	if tagCol < 0 {
		return fmt.Errorf("%w: %s", ErrMissingTagColumn, s.path)
	}

	valueCol := tbl.ensureColumn(ColumnValue)
	statusCol := tbl.ensureColumn(ColumnStatus)
	timestampCol := tbl.ensureColumn(ColumnTimestamp)

	// Index rows by tag once; duplicate tags map to multiple rows and
	// every matching row receives the same result.
	index := make(map[string][]int, len(tbl.rows))
	for i, row := range tbl.rows {
		tag := strings.TrimSpace(cellAt(row, tagCol))
		if tag == "" {
			continue
		}
		index[tag] = append(index[tag], i)
	}

	for tag, result := range results {
		for _, i := range index[tag] {
			tbl.rows[i][valueCol] = formatValue(result.Value)
			tbl.rows[i][statusCol] = result.Status
			tbl.rows[i][timestampCol] = result.Timestamp
		}
	}

	return s.write(tbl)
}

// read loads the file into a table according to its extension.
func (s *Store) read() (*table, error) {
	switch s.ext {
	case ".csv":
		return readCSVTable(s.path)
	case ".xlsx":
		return readXLSXTable(s.path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s.path)
	}
}

// write rewrites the file from the table according to its extension.
func (s *Store) write(tbl *table) error {
	switch s.ext {
	case ".csv":
		return writeCSVTable(s.path, tbl)
	case ".xlsx":
		return writeXLSXTable(s.path, tbl)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, s.path)
	}
}

// table is an in-memory tabular file: one header row plus data rows.
// Rows may be ragged on read; ensureColumn pads them to header width.
type table struct {
	// sheet is the worksheet name for XLSX files ("" for CSV).
	sheet  string
	header []string
	rows   [][]string
}

// columnIndex returns the index of the named column, matching trimmed
// header cells exactly, or -1 if absent.
func (t *table) columnIndex(name string) int {
	for i, h := range t.header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// ensureColumn returns the index of the named column, appending it (and
// padding every row with an empty cell) if it does not exist yet.
func (t *table) ensureColumn(name string) int {
	if i := t.columnIndex(name); i >= 0 {
		t.padRows()
		return i
	}
	t.header = append(t.header, name)
	t.padRows()
	return len(t.header) - 1
}

// padRows extends every data row with empty cells up to header width.
func (t *table) padRows() {
	width := len(t.header)
	for i, row := range t.rows {
		for len(row) < width {
			row = append(row, "")
		}
		t.rows[i] = row
	}
}

// cellAt returns the cell at index i, tolerating ragged rows.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// formatValue renders a server-native scalar as a cell string.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
