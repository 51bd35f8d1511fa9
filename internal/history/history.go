// Package history appends finished audit runs to a JSON lines file. The file
// is an audit trail only; no run reads it back.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
)

// Append writes run as one line at the end of path, creating the file and
// its parent directory if needed. Existing lines are never rewritten.
func Append(path string, run *models.AuditRun) error {
	if run == nil {
		return fmt.Errorf("history: nil run")
	}
	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("history: encode run %s: %w", run.ID, err)
	}
	line = append(line, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", path, err)
	}
	// A single write keeps concurrent appenders from interleaving lines.
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("history: write %s: %w", path, err)
	}
	return f.Close()
}
