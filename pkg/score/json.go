package score

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MarshalDocument serializes a document to JSON bytes.
// The encoding is deterministic for a given document, which makes the
// output usable as a cache-key input.
func MarshalDocument(d *Document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// UnmarshalDocument deserializes JSON bytes to a document and validates
// its structural invariants.
func UnmarshalDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// ReadDocument reads a document from r.
func ReadDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalDocument(data)
}

// ReadDocumentFile reads a document from a JSON file.
func ReadDocumentFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDocument(f)
}

// WriteDocumentFile writes a document to a JSON file.
func WriteDocumentFile(d *Document, path string) error {
	data, err := MarshalDocument(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
