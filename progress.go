package main

import (
	"encoding/json"
	"fmt"
	"os"
)

type Progress struct {
	Stage     string `json:"stage"`
	Completed bool   `json:"completed"`
}

// ProgressFile records the last ingestion stage. It is advisory and never
// read back by the service.
type ProgressFile struct {
	path string
}

func (p *ProgressFile) Save(stage string, completed bool) error {
	if p == nil || p.path == "" {
		return nil
	}

	buf, err := json.Marshal(Progress{Stage: stage, Completed: completed})
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	err = os.WriteFile(p.path, buf, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}

	return nil
}
