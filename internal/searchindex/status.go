package searchindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status mirrors spec.md §4.C9's lifecycle states.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusScanning   Status = "scanning"
	StatusMonitoring Status = "monitoring"
	StatusClosed     Status = "closed"
)

// statusFile is the status.json sidecar from spec.md §6.
type statusFile struct {
	Time    string `json:"time"`
	Status  Status `json:"status"`
	Version string `json:"version"`
}

func statusPath(dir string) string {
	return filepath.Join(dir, "status.json")
}

func writeStatusFile(dir string, status Status) error {
	sf := statusFile{
		Time:    time.Now().Format("2006-01-02T15:04:05"),
		Status:  status,
		Version: indexVersion,
	}
	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("anyfind: marshal status.json: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("anyfind: create index dir %s: %w", dir, err)
	}
	if err := os.WriteFile(statusPath(dir), b, 0o644); err != nil {
		return fmt.Errorf("anyfind: write status.json: %w", err)
	}
	return nil
}

func readStatusFile(dir string) (statusFile, error) {
	b, err := os.ReadFile(statusPath(dir))
	if err != nil {
		return statusFile{}, err
	}
	var sf statusFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return statusFile{}, fmt.Errorf("anyfind: parse status.json: %w", err)
	}
	return sf, nil
}
