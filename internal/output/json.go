package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// RenderJSON writes run as indented JSON. The encoding is lossless: ParseJSON
// of the output yields an equal run.
func RenderJSON(w io.Writer, run *models.AuditRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode audit run: %w", err)
	}
	return nil
}

// ParseJSON decodes a run written by RenderJSON. Numbers inside resource
// attributes decode as json.Number so integer values keep their form.
func ParseJSON(r io.Reader) (*models.AuditRun, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var run models.AuditRun
	if err := dec.Decode(&run); err != nil {
		return nil, fmt.Errorf("decode audit run: %w", err)
	}
	return &run, nil
}
