// Package dbf reads dBASE and FoxPro table files into memory.
package dbf

import (
	"math"
	"strings"
	"time"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// Field describes one column of a DBF table.
type Field struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// Table is a fully decoded DBF file. Deleted records are not included in
// Records; Deleted counts them.
type Table struct {
	Fields  []Field
	Records [][]any
	Deleted int
}

// FieldNames returns the column names in file order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Open reads every live record of the DBF file at path. Character data is
// decoded with enc.
//
// Value types: C is a right-trimmed string; N and F are int64 when the field
// has no decimals and the value is integral, float64 otherwise; I is int64;
// D is a time.Time or nil when blank; L is a bool; other types are trimmed
// text or nil. A value the file format cannot interpret fails the whole file.
func Open(path string, enc encoding.Encoding) (*Table, error) {
	log := zap.L().With(zap.String("component", "dbf"), zap.String("file", path))

	file, err := dbase.OpenTable(&dbase.Config{
		Filename:  path,
		Converter: dbase.NewDefaultConverter(enc),
		Untested:  true,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dbf: open %s", path)
	}
	defer file.Close()

	t := &Table{}
	for _, c := range file.Columns() {
		t.Fields = append(t.Fields, Field{
			Name:     c.Name(),
			Type:     c.DataType,
			Length:   int(c.Length),
			Decimals: int(c.Decimals),
		})
	}
	if len(t.Fields) == 0 {
		return nil, eris.Errorf("dbf: %s has no fields", path)
	}

	for !file.EOF() {
		row, err := file.Next()
		if err != nil {
			return nil, eris.Wrapf(err, "dbf: read record %d of %s", len(t.Records)+t.Deleted, path)
		}
		if row.Deleted {
			t.Deleted++
			continue
		}

		raw := row.Values()
		values := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			if i < len(raw) {
				values[i] = normalizeValue(f, raw[i])
			}
		}
		t.Records = append(t.Records, values)
	}

	log.Debug("dbf decoded",
		zap.Int("fields", len(t.Fields)),
		zap.Int("records", len(t.Records)),
		zap.Int("deleted", t.Deleted),
	)
	return t, nil
}

// normalizeValue maps a decoded value onto the small set of Go types the
// staging loader writes.
func normalizeValue(f Field, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return textValue(f, x)
	case []byte:
		return textValue(f, string(x))
	case bool:
		return x
	case time.Time:
		if x.IsZero() || x.Year() <= 1 {
			return nil
		}
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return floatValue(f, float64(x))
	case float64:
		return floatValue(f, x)
	default:
		return v
	}
}

func textValue(f Field, s string) any {
	s = strings.TrimRight(s, "\x00 ")
	if f.Type == 'C' {
		return s
	}
	s = strings.TrimLeft(s, "\x00 ")
	if s == "" {
		return nil
	}
	return s
}

func floatValue(f Field, x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	if f.Type == 'N' && f.Decimals == 0 && x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
		return int64(x)
	}
	return x
}
