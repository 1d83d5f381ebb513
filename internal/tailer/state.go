package tailer

import (
	"encoding/json"
	"fmt"
	"os"

	"gatewatch/pkg/models"
)

// readStateFile loads saved cursors keyed by file path.
func readStateFile(path string) (map[string]models.FileState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state map[string]models.FileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, nil
}

// writeStateFile persists cursors so a restart resumes instead of replaying.
func writeStateFile(path string, state map[string]models.FileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
