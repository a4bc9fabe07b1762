// Package export writes harvested records as a JSON array of flat objects.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrNoRecords is returned when there is nothing to export
var ErrNoRecords = errors.New("no records to export")

// DefaultFilename returns the conventional export name for a list type
func DefaultFilename(lt types.ListType) string {
	return "twitter_" + string(lt) + ".json"
}

// Encode renders records as a JSON array, one object per record with the schema
// fields first and in schema order. The output is indented unless that would
// exceed sizeLimit bytes, in which case it is compact. A sizeLimit of 0 disables
// the fallback.
func Encode(schema types.Schema, records []types.Record, sizeLimit int) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('[')
	for i, r := range records {
		if i > 0 {
			compact.WriteByte(',')
		}
		if err := writeObject(&compact, schema, r); err != nil {
			return nil, err
		}
	}
	compact.WriteByte(']')

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent export: %w", err)
	}
	pretty.WriteByte('\n')
	if sizeLimit <= 0 || pretty.Len() <= sizeLimit {
		return pretty.Bytes(), nil
	}

	compact.WriteByte('\n')
	return compact.Bytes(), nil
}

// writeObject flattens one record. Fields unknown to the schema follow in name order.
func writeObject(buf *bytes.Buffer, schema types.Schema, r types.Record) error {
	names := make([]string, 0, len(r.Fields))
	for _, f := range schema.Fields {
		if _, ok := r.Fields[f]; ok {
			names = append(names, f)
		}
	}
	var extra []string
	for f := range r.Fields {
		if !slices.Contains(schema.Fields, f) {
			extra = append(extra, f)
		}
	}
	slices.Sort(extra)
	names = append(names, extra...)

	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		v, err := json.Marshal(r.Fields[name])
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return nil
}

// WriteFile encodes records into path and returns the number of bytes written
func WriteFile(path string, schema types.Schema, records []types.Record, sizeLimit int) (int, error) {
	if len(records) == 0 {
		return 0, ErrNoRecords
	}
	data, err := Encode(schema, records, sizeLimit)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	return len(data), nil
}
