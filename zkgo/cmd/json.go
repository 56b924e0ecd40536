package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

var OutFilePerm = os.FileMode(0o755)

// writeJSON writes the value as indented JSON to the given path,
// or to stdout when the path is "-" or empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
