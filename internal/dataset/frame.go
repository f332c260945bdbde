package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Frame is a CSV file held as text: a header and the records under it.
type Frame struct {
	Header  []string
	Records [][]string
	index   map[string]int
}

// ReadFrame loads a CSV file with a header row. Short records are padded with
// empty cells so every record has len(Header) fields.
func ReadFrame(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
	}

	fr := &Frame{Header: header}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		fr.Records = append(fr.Records, rec[:len(header)])
	}
	return fr, nil
}

// Col returns the position of the named column, or -1.
func (f *Frame) Col(name string) int {
	if f.index == nil {
		f.index = make(map[string]int, len(f.Header))
		for i, h := range f.Header {
			f.index[h] = i
		}
	}
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// Missing lists the names in cols that the frame does not have.
func (f *Frame) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if f.Col(c) < 0 {
			out = append(out, c)
		}
	}
	return out
}

// writeAtomic writes rows to a temp file next to path and renames it into
// place, so readers never observe a half-written file.
func writeAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
