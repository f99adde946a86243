// Package seed defines the on-disk seed file model shared by the import and
// export engines, plus the container grouping and partition key inference
// applied to a batch of seed files before import.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// SystemFieldPrefix marks database-internal document fields (_rid,
	// _self, _etag, _attachments, _ts). Fields with this prefix are
	// stripped before re-serialization on export.
	SystemFieldPrefix = "_"

	// PartitionKeyField is the document field holding the partition key.
	PartitionKeyField = "pk"

	// DefaultPartitionKeyPath is the partition key path used when creating
	// containers.
	DefaultPartitionKeyPath = "/" + PartitionKeyField
)

// Config is the seedConfig section of a seed file: where the document goes
// and under which identity.
type Config struct {
	ID        string `json:"id"`
	DB        string `json:"db"`
	Container string `json:"container,omitempty"`
	PK        string `json:"pk,omitempty"`
}

// File is one seed file: routing config plus the document payload.
type File struct {
	SeedConfig Config         `json:"seedConfig"`
	SeedData   map[string]any `json:"seedData"`
}

// Parse decodes a seed file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Marshal renders the seed file as canonical indented JSON. Map keys are
// emitted in sorted order, so repeated runs over identical data produce
// byte-identical output.
func (f *File) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal seed file: %w", err)
	}
	return append(data, '\n'), nil
}

// SourceFile is one on-disk input file, read once and shared by the
// grouper, the resolver, and the import engine.
type SourceFile struct {
	Path string
	Data []byte
}

// ReadDir enumerates the .json files of a directory in sorted name order
// and reads their contents.
func ReadDir(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read seed directory: %w", err)
	}

	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file %s: %w", path, err)
		}
		files = append(files, SourceFile{Path: path, Data: data})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// StripSystemFields returns a copy of doc without the fields whose names
// begin with the internal-use marker prefix.
func StripSystemFields(doc map[string]any) map[string]any {
	cleaned := make(map[string]any, len(doc))
	for name, value := range doc {
		if strings.HasPrefix(name, SystemFieldPrefix) {
			continue
		}
		cleaned[name] = value
	}
	return cleaned
}

// ValueAtPath reads the string value at a partition key path like "/pk"
// (nested paths like "/a/b" traverse objects). Returns "" when the path is
// empty, missing, or not a string.
func ValueAtPath(doc map[string]any, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}

	var current any = doc
	for _, segment := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = obj[segment]
	}

	value, _ := current.(string)
	return value
}

// ContentEqual reports whether two serialized seed files carry identical
// content after normalization (line endings and surrounding whitespace).
// The export engine uses this for change detection against the previously
// exported file.
func ContentEqual(a, b []byte) bool {
	return normalize(a) == normalize(b)
}

func normalize(data []byte) string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimSpace(s)
}
