// Package adapter wraps each external security scanner behind a uniform
// invocation contract: run the tool against a target, capture its raw
// output, and parse that output into normalized findings.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

var (
	// ErrToolNotFound indicates the adapter's external binary is not on PATH.
	ErrToolNotFound = errors.New("external tool not found")
	// ErrTimeout indicates the invocation exceeded its budget and the
	// underlying process was terminated.
	ErrTimeout = errors.New("adapter timed out")
	// ErrNonZeroExit indicates an exit status the adapter does not treat
	// as "findings present". Some scanners use non-zero exits to signal
	// findings; those are accepted per adapter and never wrapped here.
	ErrNonZeroExit = errors.New("unexpected non-zero exit")
)

// RawResult is the unprocessed captured output of one adapter invocation.
// It is owned by the producing adapter until normalization and is never
// retained in the final report.
type RawResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Adapter is the common capability every scanner wrapper provides.
type Adapter interface {
	// Name is the stable adapter identifier used in reports and findings.
	Name() string

	// Tool is the external executable the adapter shells out to,
	// or empty for built-in adapters.
	Tool() string

	// TableVersion identifies the adapter's severity-mapping table so
	// reports remain comparable across tool upgrades.
	TableVersion() string

	// Run invokes the scanner against the target within the timeout.
	// Failures are classified via ErrToolNotFound, ErrTimeout and
	// ErrNonZeroExit.
	Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error)

	// Parse converts a raw result into zero or more findings. It must be
	// a pure function of the raw result: re-parsing the same bytes yields
	// the same findings.
	Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error)
}
