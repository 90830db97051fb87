package plot

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/matzehuels/maidr/pkg/errors"
)

// Column is a named vector of cell values.
//
// Values are kept as strings exactly as they were read; numeric access goes
// through [Dataset.Floats]. Levels, when non-empty, pins the category order
// of the column (the equivalent of a factor). An unpinned column orders its
// categories by ascending natural sort.
type Column struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
	Levels []string `json:"levels,omitempty"`
}

// Dataset is a rectangular table of named columns with equal length.
type Dataset struct {
	Name    string   `json:"name,omitempty"`
	Columns []Column `json:"columns"`
}

// NewDataset builds a dataset from a header and row-major records.
// Short rows are padded with empty cells; long rows are an error.
func NewDataset(name string, header []string, rows [][]string) (*Dataset, error) {
	d := &Dataset{Name: name}
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if err := errors.ValidateColumnName(h); err != nil {
			return nil, err
		}
		if seen[h] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate column %q", h)
		}
		seen[h] = true
		d.Columns = append(d.Columns, Column{Name: h, Values: make([]string, 0, len(rows))})
	}
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "row %d has %d cells, header has %d", i+1, len(row), len(header))
		}
		for c := range d.Columns {
			v := ""
			if c < len(row) {
				v = strings.TrimSpace(row[c])
			}
			d.Columns[c].Values = append(d.Columns[c].Values, v)
		}
	}
	return d, nil
}

// FromColumns builds a dataset from column vectors, which must share a length.
func FromColumns(name string, cols ...Column) (*Dataset, error) {
	d := &Dataset{Name: name}
	for _, c := range cols {
		if err := errors.ValidateColumnName(c.Name); err != nil {
			return nil, err
		}
		if len(d.Columns) > 0 && len(c.Values) != len(d.Columns[0].Values) {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"column %q has %d values, want %d", c.Name, len(c.Values), len(d.Columns[0].Values))
		}
		if d.Has(c.Name) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate column %q", c.Name)
		}
		d.Columns = append(d.Columns, c)
	}
	return d, nil
}

// Len returns the number of rows. A nil dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Names returns the column names in declaration order.
func (d *Dataset) Names() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the dataset has a column with the given name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.column(name)
	return ok
}

func (d *Dataset) column(name string) (*Column, bool) {
	if d == nil || name == "" {
		return nil, false
	}
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Values returns the raw values of a column, or nil if it does not exist.
func (d *Dataset) Values(name string) []string {
	c, ok := d.column(name)
	if !ok {
		return nil
	}
	return c.Values
}

// Value returns a single cell.
func (d *Dataset) Value(name string, row int) string {
	vals := d.Values(name)
	if row < 0 || row >= len(vals) {
		return ""
	}
	return vals[row]
}

// Floats parses a column as numbers. Empty and "NA" cells become NaN.
func (d *Dataset) Floats(name string) ([]float64, error) {
	c, ok := d.column(name)
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingBinding, "dataset has no column %q", name)
	}
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		if isMissing(v) {
			out[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "column %q row %d: %q is not a number", name, i+1, v)
		}
		out[i] = f
	}
	return out, nil
}

// IsNumeric reports whether every non-missing cell of a column parses as a
// number and there is no pinned level order. Pinned columns are categorical
// even when their labels look like numbers.
func (d *Dataset) IsNumeric(name string) bool {
	c, ok := d.column(name)
	if !ok || len(c.Levels) > 0 {
		return false
	}
	found := false
	for _, v := range c.Values {
		if isMissing(v) {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		found = true
	}
	return found
}

// Levels returns the category order of a column: the pinned levels when
// present, otherwise the distinct non-missing values in ascending natural
// order. Values absent from pinned levels are appended in natural order.
func (d *Dataset) Levels(name string) []string {
	c, ok := d.column(name)
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(c.Levels))
	levels := make([]string, 0, len(c.Levels))
	for _, l := range c.Levels {
		if !seen[l] {
			seen[l] = true
			levels = append(levels, l)
		}
	}
	var extra []string
	for _, v := range c.Values {
		if isMissing(v) || seen[v] {
			continue
		}
		seen[v] = true
		extra = append(extra, v)
	}
	sort.SliceStable(extra, func(i, j int) bool { return CompareNatural(extra[i], extra[j]) < 0 })
	return append(levels, extra...)
}

// LevelIndex maps each level of a column to its position.
func (d *Dataset) LevelIndex(name string) map[string]int {
	return IndexOf(d.Levels(name))
}

// IndexOf maps each string to its position in the slice.
func IndexOf(levels []string) map[string]int {
	idx := make(map[string]int, len(levels))
	for i, l := range levels {
		if _, dup := idx[l]; !dup {
			idx[l] = i
		}
	}
	return idx
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	var out Dataset
	if err := deepcopy.Copy(&out, d); err != nil {
		// Dataset holds only strings and slices; a copy failure is a bug.
		panic(fmt.Sprintf("plot: clone dataset: %v", err))
	}
	return &out
}

// PinLevels fixes the category order of a column in place.
func (d *Dataset) PinLevels(name string, levels []string) error {
	c, ok := d.column(name)
	if !ok {
		return errors.New(errors.ErrCodeMissingBinding, "dataset has no column %q", name)
	}
	c.Levels = slices.Clone(levels)
	return nil
}

// Permute returns a deep copy with rows reordered so that row i of the
// result is row order[i] of d. Pinned levels are preserved.
func (d *Dataset) Permute(order []int) (*Dataset, error) {
	if len(order) != d.Len() {
		return nil, errors.New(errors.ErrCodeInternal, "permutation has %d entries, dataset has %d rows", len(order), d.Len())
	}
	out := d.Clone()
	for c := range out.Columns {
		src := d.Columns[c].Values
		dst := out.Columns[c].Values
		for i, j := range order {
			dst[i] = src[j]
		}
	}
	return out, nil
}

// SortStable returns a reordered deep copy; less compares original row indices.
func (d *Dataset) SortStable(less func(a, b int) bool) *Dataset {
	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })
	out, _ := d.Permute(order)
	return out
}

// Filter returns a deep copy containing only rows for which keep is true.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	out := d.Clone()
	if out == nil {
		return nil
	}
	for c := range out.Columns {
		out.Columns[c].Values = out.Columns[c].Values[:0]
	}
	for i := 0; i < d.Len(); i++ {
		if !keep(i) {
			continue
		}
		for c := range out.Columns {
			out.Columns[c].Values = append(out.Columns[c].Values, d.Columns[c].Values[i])
		}
	}
	return out
}

// CompareNatural orders numbers numerically before non-numeric strings,
// which compare lexically.
func CompareNatural(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func isMissing(v string) bool {
	return v == "" || v == "NA"
}
