// Package sheet reads one worksheet of an .xlsx workbook into a header plus
// positional text rows.
package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptySheet is returned when the sheet has no header row.
	ErrEmptySheet = errors.New("sheet has no header row")
	// ErrMalformedHeader is returned when a header cell is blank.
	ErrMalformedHeader = errors.New("malformed header")
)

// Options control how a sheet is read.
type Options struct {
	// Sheet selects the worksheet by name. Empty means the active sheet.
	Sheet string
	// RawValues returns stored cell values instead of formatted ones.
	RawValues bool
	// KeepBlankRows keeps data rows whose cells are all empty.
	KeepBlankRows bool
}

// Sheet is the decoded worksheet. Every row has exactly len(Columns) fields.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
	// Lines holds the 1-based worksheet row number of each entry in Rows.
	Lines []int
	// Blank counts data rows dropped because every cell was empty.
	Blank int
}

// ReadError reports a failure to turn the workbook into a Sheet.
type ReadError struct {
	Path  string
	Sheet string
	Err   error
}

func (e *ReadError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("read %s [%s]: %v", e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read opens path, decodes the selected sheet and closes the workbook before
// returning. Header cells are normalized with NormalizeName; data cells are
// kept verbatim, short rows are padded with "" and extra cells dropped.
func Read(path string, opts Options) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	name := opts.Sheet
	if name == "" {
		name = f.GetSheetName(f.GetActiveSheetIndex())
	} else if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		if err == nil {
			err = excelize.ErrSheetNotExist{SheetName: name}
		}
		return nil, &ReadError{Path: path, Sheet: name, Err: err}
	}

	var rowOpts []excelize.Options
	if opts.RawValues {
		rowOpts = append(rowOpts, excelize.Options{RawCellValue: true})
	}
	raw, err := f.GetRows(name, rowOpts...)
	if err != nil {
		return nil, &ReadError{Path: path, Sheet: name, Err: err}
	}

	s, err := decode(name, raw, opts.KeepBlankRows)
	if err != nil {
		return nil, &ReadError{Path: path, Sheet: name, Err: err}
	}
	return s, nil
}

func decode(name string, raw [][]string, keepBlank bool) (*Sheet, error) {
	if len(raw) == 0 || isBlank(raw[0]) {
		return nil, ErrEmptySheet
	}

	header := raw[0]
	cols := make([]string, len(header))
	for i, h := range header {
		n := NormalizeName(h)
		if n == "" {
			return nil, fmt.Errorf("%w: column %d is empty", ErrMalformedHeader, i+1)
		}
		cols[i] = n
	}

	s := &Sheet{
		Name:    name,
		Columns: cols,
		Rows:    make([][]string, 0, len(raw)-1),
		Lines:   make([]int, 0, len(raw)-1),
	}
	for i, r := range raw[1:] {
		if !keepBlank && isBlank(r) {
			s.Blank++
			continue
		}
		row := make([]string, len(cols))
		copy(row, r)
		s.Rows = append(s.Rows, row)
		s.Lines = append(s.Lines, i+2)
	}
	return s, nil
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Preview returns at most n leading data rows.
func (s *Sheet) Preview(n int) [][]string {
	if n <= 0 {
		return nil
	}
	if n > len(s.Rows) {
		n = len(s.Rows)
	}
	return s.Rows[:n]
}

// RowNumber returns the worksheet row number of Rows[i].
func (s *Sheet) RowNumber(i int) int {
	if i < len(s.Lines) {
		return s.Lines[i]
	}
	return i + 2
}

// DuplicateColumns returns header names that occur more than once, in order
// of first repetition.
func (s *Sheet) DuplicateColumns() []string {
	seen := make(map[string]int, len(s.Columns))
	var dups []string
	for _, c := range s.Columns {
		seen[c]++
		if seen[c] == 2 {
			dups = append(dups, c)
		}
	}
	return dups
}

// Index returns the position of column name, or -1.
func (s *Sheet) Index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
