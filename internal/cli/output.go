package cli

import (
	"encoding/json"
	"io"
)

// IsJSONOutput reports whether results are written as JSON.
func IsJSONOutput() bool {
	return jsonOutput
}

// WriteOutput writes v as indented JSON.
func WriteOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
