package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrWrite indicates the report could not be persisted. The run's results
// only survive if the caller retained the in-memory report.
var ErrWrite = errors.New("report write failed")

// Write serializes the report to path as indented JSON and drops a
// .sha256 companion file so stored reports are tamper-evident.
func Write(r *AuditReport, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrWrite, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	sum := sha256.Sum256(data)
	checksum := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), filepath.Base(path))
	if err := os.WriteFile(path+".sha256", []byte(checksum), 0o644); err != nil {
		return fmt.Errorf("%w: checksum: %v", ErrWrite, err)
	}

	return nil
}

// Read loads a stored report. Unknown fields are ignored so newer schema
// versions remain readable.
func Read(path string) (*AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r AuditReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
