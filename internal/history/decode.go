package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dvloznov/spend-signals/internal/analytics"
)

// parsedKey holds the receipt extraction payload attached to some records.
// The engine never reads it.
const parsedKey = "parsed"

// Format is a history file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// FormatFromName picks the format from a file or object name.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported history format %q", path.Ext(name))
	}
}

// Decode parses history data in the given format.
func Decode(data []byte, format Format) ([]analytics.RawRecord, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatCSV:
		return DecodeCSV(data)
	default:
		return nil, fmt.Errorf("unsupported history format %q", format)
	}
}

// DecodeJSON parses a JSON array of transaction objects. Numbers are kept as
// json.Number so amounts keep their decimal text.
func DecodeJSON(data []byte) ([]analytics.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []map[string]interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("DecodeJSON: %w", err)
	}

	records := make([]analytics.RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, toRecord(item))
	}
	return records, nil
}

// DecodeCSV parses CSV with a header row. Empty cells are treated as absent.
func DecodeCSV(data []byte) ([]analytics.RawRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var records []analytics.RawRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeCSV: line %d: %w", line, err)
		}

		item := make(map[string]interface{}, len(header))
		for i, key := range header {
			if i >= len(row) {
				break
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				item[key] = v
			}
		}
		records = append(records, toRecord(item))
	}
	return records, nil
}

func toRecord(item map[string]interface{}) analytics.RawRecord {
	rec := make(analytics.RawRecord, len(item))
	for k, v := range item {
		if k == parsedKey {
			continue
		}
		rec[k] = v
	}
	return rec
}
