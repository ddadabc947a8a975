package render

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/strathmore/pipescore/pkg/layout"
)

// MarshalResult serializes a layout result as indented JSON, the
// interchange format the HTTP API and the layout command share.
func MarshalResult(res *layout.UpdateResult) ([]byte, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal layout result: %w", err)
	}
	return data, nil
}

// WriteResultFile writes a layout result to path as JSON.
func WriteResultFile(res *layout.UpdateResult, path string) error {
	data, err := MarshalResult(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
