// Package ledger writes the per-commit effort CSV.
package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/HokkanenNiko/RefactoringAnalyzer/internal/errors"
)

// BaseColumns are present in every ledger
var BaseColumns = []string{"Developer", "Refactoring Hash", "Previous Hash", "TLOC"}

// Record is one ledger row. CurrentLOC and PreviousLOC are only set by the
// total-at-revision strategy.
type Record struct {
	Developer    string
	CommitHash   string
	ParentHash   string
	TouchedLines int
	CurrentLOC   *int
	PreviousLOC  *int
}

// Fields renders the record in column order. Optional sizes are appended
// only when present.
func (r Record) Fields() []string {
	fields := []string{r.Developer, r.CommitHash, r.ParentHash, strconv.Itoa(r.TouchedLines)}
	if r.CurrentLOC != nil {
		fields = append(fields, strconv.Itoa(*r.CurrentLOC))
	}
	if r.PreviousLOC != nil {
		fields = append(fields, strconv.Itoa(*r.PreviousLOC))
	}
	return fields
}

// Columns returns the header for a ledger with the given extra columns
func Columns(extra []string) []string {
	return append(append([]string(nil), BaseColumns...), extra...)
}

// Writer appends rows to a ledger file and flushes after each one, so an
// aborted run leaves every written row on disk.
type Writer struct {
	path    string
	file    *os.File
	csv     *csv.Writer
	columns int
	rows    int
}

// Open creates (or truncates) the ledger at path, creating parent dirs
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.OutputWriteFailuref(err, "create ledger directory %s", dir)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.OutputWriteFailuref(err, "create ledger %s", path)
	}
	return &Writer{path: path, file: file, csv: csv.NewWriter(file)}, nil
}

// Path returns the ledger location
func (w *Writer) Path() string {
	return w.path
}

// Rows returns the number of data rows written so far
func (w *Writer) Rows() int {
	return w.rows
}

// WriteHeader writes the column row. It must be called once, before any row.
func (w *Writer) WriteHeader(columns []string) error {
	if w.columns != 0 {
		return errors.InternalErrorf("ledger header already written")
	}
	w.columns = len(columns)
	return w.write(columns)
}

// WriteRow appends one record
func (w *Writer) WriteRow(record Record) error {
	fields := record.Fields()
	if len(fields) != w.columns {
		return errors.OutputWriteFailuref(nil, "ledger row has %d fields, header has %d", len(fields), w.columns)
	}
	if err := w.write(fields); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) write(fields []string) error {
	if err := w.csv.Write(fields); err != nil {
		return errors.OutputWriteFailuref(err, "write ledger %s", w.path)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.OutputWriteFailuref(err, "flush ledger %s", w.path)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file = nil

	if flushErr != nil {
		return errors.OutputWriteFailuref(flushErr, "flush ledger %s", w.path)
	}
	if closeErr != nil {
		return errors.OutputWriteFailuref(closeErr, "close ledger %s", w.path)
	}
	return nil
}
