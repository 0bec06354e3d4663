package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// structuredOutput reports whether the command should emit JSON or YAML
// instead of rendered text.
func structuredOutput() bool {
	return jsonOutput || outputFormat != ""
}

// outputStructured writes v as YAML when --format yaml is set and as
// pretty-printed JSON otherwise.
func outputStructured(w io.Writer, v interface{}) error {
	if outputFormat == "yaml" {
		return outputYAML(w, v)
	}
	return outputJSON(w, v)
}

// outputJSON outputs data as pretty-printed JSON.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func outputYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return encoder.Close()
}
