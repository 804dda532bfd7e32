package report

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"reflect"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

// Formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Sink stores a named report. records must be a slice of csv-tagged
// structs; the header is written even when the slice is empty. Write
// returns the path written.
type Sink interface {
	Write(name string, records any) (string, error)
}

// NewSink returns the sink for a format, writing under dir.
func NewSink(format, dir string) (Sink, error) {
	switch format {
	case FormatCSV, "":
		return &CSVSink{Dir: dir}, nil
	case FormatXLSX:
		return &XLSXSink{Dir: dir}, nil
	}
	return nil, eris.Errorf("report: unknown format %q", format)
}

// encode renders records as CSV, header first.
func encode(records any) ([]byte, error) {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Struct {
		return nil, eris.Errorf("report: records must be a struct slice, got %T", records)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(reflect.Zero(v.Type().Elem()).Interface()); err != nil {
		return nil, eris.Wrap(err, "report: encode header")
	}
	if v.Len() > 0 {
		if err := enc.Encode(records); err != nil {
			return nil, eris.Wrap(err, "report: encode rows")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "report: flush csv")
	}
	return buf.Bytes(), nil
}

// CSVSink writes <Dir>/<name>.csv.
type CSVSink struct {
	Dir string
}

// Write encodes records and replaces the file atomically.
func (s *CSVSink) Write(name string, records any) (string, error) {
	data, err := encode(records)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name+".csv")
	if err := snapshot.WriteAtomic(path, data); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}
	return path, nil
}

// XLSXSink writes <Dir>/<name>.xlsx with a single sheet of string cells.
type XLSXSink struct {
	Dir string
}

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// Write encodes records and replaces the workbook atomically.
func (s *XLSXSink) Write(name string, records any) (string, error) {
	data, err := encode(records)
	if err != nil {
		return "", err
	}
	table, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return "", eris.Wrap(err, "report: re-read csv")
	}

	sheetName := name
	if len(sheetName) > maxSheetName {
		sheetName = sheetName[:maxSheetName]
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return "", eris.Wrap(err, "report: add sheet")
	}
	for _, values := range table {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return "", eris.Wrap(err, "report: encode xlsx")
	}
	path := filepath.Join(s.Dir, name+".xlsx")
	if err := snapshot.WriteAtomic(path, buf.Bytes()); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}
	return path, nil
}
