package plot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xuri/excelize/v2"

	"github.com/matzehuels/maidr/pkg/errors"
)

// File is the on-disk form of a [Spec], decoded from TOML or JSON.
//
// Datasets are either loaded from a path (CSV or XLSX) or given inline as
// columns plus rows. Layers name the dataset they use; an empty name means
// the plot data.
//
//	title = "Tips"
//	[data]
//	path = "tips.csv"
//	[data.levels]
//	day = ["Thur", "Fri", "Sat", "Sun"]
//	[[layers]]
//	geom = "bar"
//	position = "stack"
//	aes = { x = "day", y = "total", fill = "sex" }
type File struct {
	ID          string           `json:"id,omitempty" toml:"id"`
	Title       string           `json:"title,omitempty" toml:"title"`
	Axes        Axes             `json:"axes" toml:"axes"`
	Data        *Source          `json:"data,omitempty" toml:"data"`
	Datasets    []Source         `json:"datasets,omitempty" toml:"datasets"`
	Layers      []LayerFile      `json:"layers,omitempty" toml:"layers"`
	Facet       *Facet           `json:"facet,omitempty" toml:"facet"`
	Composition *CompositionFile `json:"composition,omitempty" toml:"composition"`
}

// Source describes where a dataset comes from.
type Source struct {
	Name    string              `json:"name,omitempty" toml:"name"`
	Path    string              `json:"path,omitempty" toml:"path"`
	Sheet   string              `json:"sheet,omitempty" toml:"sheet"`
	Columns []string            `json:"columns,omitempty" toml:"columns"`
	Rows    [][]any             `json:"rows,omitempty" toml:"rows"`
	Levels  map[string][]string `json:"levels,omitempty" toml:"levels"`
}

// LayerFile is the on-disk form of a [Layer].
type LayerFile struct {
	ID       string `json:"id,omitempty" toml:"id"`
	Geom     string `json:"geom" toml:"geom"`
	Stat     string `json:"stat,omitempty" toml:"stat"`
	Position string `json:"position,omitempty" toml:"position"`
	Aes      Aes    `json:"aes" toml:"aes"`
	Title    string `json:"title,omitempty" toml:"title"`
	Bins     int    `json:"bins,omitempty" toml:"bins"`
	Data     string `json:"data,omitempty" toml:"data"`
}

// CompositionFile lists the plots of a composition, either as paths to
// other spec files or inline.
type CompositionFile struct {
	NCol  int      `json:"ncol" toml:"ncol"`
	Files []string `json:"files,omitempty" toml:"files"`
	Plots []File   `json:"plots,omitempty" toml:"plots"`
}

// LoadOptions controls how dataset paths are resolved.
type LoadOptions struct {
	// BaseDir resolves relative dataset and composition paths.
	BaseDir string
	// AllowPaths permits datasets and compositions loaded from disk.
	// Specs received over the network set this to false unless the
	// server was given a data directory.
	AllowPaths bool
	// Sandboxed restricts paths to relative ones below BaseDir.
	Sandboxed bool
}

// LoadFile reads a spec file. The format is chosen by extension: .json is
// JSON, anything else is TOML.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "spec file %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read spec file")
	}
	format := "toml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Decode(data, format, LoadOptions{BaseDir: filepath.Dir(path), AllowPaths: true})
}

// Decode parses a spec document in the given format ("toml" or "json").
func Decode(data []byte, format string, opts LoadOptions) (*Spec, error) {
	var f File
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode JSON spec")
		}
	case "toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode TOML spec")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported spec format %q", format)
	}
	return f.Spec(opts)
}

// Spec resolves datasets and builds the specification.
func (f *File) Spec(opts LoadOptions) (*Spec, error) {
	s := &Spec{ID: f.ID, Title: f.Title, Axes: f.Axes, Facet: f.Facet}

	if f.Composition != nil {
		comp := &Composition{NCol: f.Composition.NCol}
		for _, p := range f.Composition.Files {
			if !opts.AllowPaths || opts.Sandboxed {
				return nil, errors.New(errors.ErrCodeInvalidPath, "composition files are not allowed here")
			}
			child, err := LoadFile(resolve(opts.BaseDir, p))
			if err != nil {
				return nil, err
			}
			comp.Plots = append(comp.Plots, child)
		}
		for i := range f.Composition.Plots {
			child, err := f.Composition.Plots[i].Spec(opts)
			if err != nil {
				return nil, err
			}
			comp.Plots = append(comp.Plots, child)
		}
		s.Composition = comp
	}

	named := make(map[string]*Dataset, len(f.Datasets))
	if f.Data != nil {
		d, err := f.Data.Load(opts)
		if err != nil {
			return nil, err
		}
		s.Data = d
	}
	for i := range f.Datasets {
		src := &f.Datasets[i]
		if src.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "dataset %d has no name", i+1)
		}
		d, err := src.Load(opts)
		if err != nil {
			return nil, err
		}
		named[src.Name] = d
	}

	for i, lf := range f.Layers {
		l := Layer{
			ID:       lf.ID,
			Geom:     lf.Geom,
			Stat:     lf.Stat,
			Position: lf.Position,
			Aes:      lf.Aes,
			Title:    lf.Title,
			Bins:     lf.Bins,
		}
		if lf.Data != "" {
			d, ok := named[lf.Data]
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidSpec, "layer %d uses unknown dataset %q", i+1, lf.Data)
			}
			l.Data = d
		}
		s.Layers = append(s.Layers, l)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the dataset a source describes and pins its levels.
func (src *Source) Load(opts LoadOptions) (*Dataset, error) {
	var (
		d   *Dataset
		err error
	)
	switch {
	case src.Path != "" && len(src.Columns) > 0:
		return nil, errors.New(errors.ErrCodeInvalidSpec, "dataset %q has both a path and inline columns", src.Name)
	case src.Path != "":
		if !opts.AllowPaths {
			return nil, errors.New(errors.ErrCodeInvalidPath, "dataset paths are not allowed here")
		}
		if opts.Sandboxed {
			if err := errors.ValidatePath(src.Path); err != nil {
				return nil, err
			}
		}
		d, err = readPath(resolve(opts.BaseDir, src.Path), src.Sheet)
	case len(src.Columns) > 0:
		rows := make([][]string, len(src.Rows))
		for i, r := range src.Rows {
			rows[i] = make([]string, len(r))
			for j, v := range r {
				rows[i][j] = cellString(v)
			}
		}
		d, err = NewDataset(src.Name, src.Columns, rows)
	default:
		return nil, errors.New(errors.ErrCodeInvalidSpec, "dataset %q has neither a path nor columns", src.Name)
	}
	if err != nil {
		return nil, err
	}
	d.Name = src.Name
	for col, levels := range src.Levels {
		if err := d.PinLevels(col, levels); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func readPath(path, sheet string) (*Dataset, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeFileNotFound, "dataset %s not found", path)
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open dataset")
		}
		defer f.Close()
		return ReadCSV(f, name)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported dataset format %q", filepath.Ext(path))
}

// ReadCSV reads a dataset whose first record is the header.
func ReadCSV(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse CSV")
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "CSV has no header")
	}
	return NewDataset(name, records[0], records[1:])
}

// ReadXLSX reads a dataset from a workbook sheet whose first row is the
// header. An empty sheet name selects the first sheet.
func ReadXLSX(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "workbook %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "open workbook")
	}
	defer f.Close()
	return readWorkbook(f, sheet)
}

// ReadXLSXFrom reads a workbook from a stream.
func ReadXLSXFrom(r io.Reader, sheet string) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "open workbook")
	}
	defer f.Close()
	return readWorkbook(f, sheet)
}

func readWorkbook(f *excelize.File, sheet string) (*Dataset, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sheet %q has no header", sheet)
	}
	return NewDataset(sheet, rows[0], rows[1:])
}

func resolve(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
