// Package orchestrator sequences adapter invocations across targets with
// bounded parallelism, isolates per-adapter failures, and aggregates
// normalized findings into a single audit report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/secaudit/secaudit/internal/adapter"
	"github.com/secaudit/secaudit/internal/finding"
	"github.com/secaudit/secaudit/internal/normalize"
	"github.com/secaudit/secaudit/internal/report"
)

// ErrNoAdapters indicates the run was requested with an empty adapter set.
var ErrNoAdapters = errors.New("no adapters available")

// ErrNoTargets indicates the run was requested with no targets.
var ErrNoTargets = errors.New("no targets given")

const (
	// DefaultConcurrency caps concurrent adapter processes. Scanners are
	// resource-heavy and some targets must not receive several aggressive
	// scans at once, so the default stays small.
	DefaultConcurrency = 4
	// DefaultTimeout bounds a single adapter invocation.
	DefaultTimeout = 5 * time.Minute
)

// Options tunes a run. Zero values fall back to the defaults above.
type Options struct {
	Concurrency int
	// RateLimit caps invocation starts per second across all workers.
	// Zero or negative means unlimited.
	RateLimit int
	// Timeout is the per-invocation budget; Timeouts overrides it for
	// named adapters.
	Timeout  time.Duration
	Timeouts map[string]time.Duration
	Logger   *zap.SugaredLogger
	// OnInvocation, when set, observes each finished invocation. Used by
	// the CLI progress printer.
	OnInvocation func(report.Invocation)
}

// Orchestrator runs a fixed adapter set against targets.
type Orchestrator struct {
	adapters []adapter.Adapter
	opts     Options
}

// New validates the adapter set and prepares a run.
func New(adapters []adapter.Adapter, opts Options) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{adapters: adapters, opts: opts}, nil
}

func (o *Orchestrator) timeoutFor(name string) time.Duration {
	if t, ok := o.opts.Timeouts[name]; ok && t > 0 {
		return t
	}
	return o.opts.Timeout
}

// Run executes every adapter against every target and aggregates the
// findings. Per-adapter failures are recorded, never propagated: one
// adapter's failure cannot abort other adapters or targets. Cancelling ctx
// terminates in-flight adapter processes; completed results are still
// normalized and the report is marked partial.
func (o *Orchestrator) Run(ctx context.Context, targets []finding.Target) (*report.AuditReport, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	limit := rate.Inf
	burst := 1
	if o.opts.RateLimit > 0 {
		limit = rate.Limit(o.opts.RateLimit)
		burst = o.opts.RateLimit
	}
	limiter := rate.NewLimiter(limit, burst)

	rep := &report.AuditReport{
		SchemaVersion: report.SchemaVersion,
		Targets:       targets,
		Metadata: report.Metadata{
			StartedAt: time.Now().UTC(),
			Adapters:  adapterInfos(o.adapters),
		},
	}

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	// Findings are accumulated per invocation index first so the final
	// ordering depends on the (target, adapter) schedule, not on which
	// worker happened to finish first.
	type slot struct {
		findings   []finding.Finding
		invocation report.Invocation
	}
	slots := make([]slot, len(targets)*len(o.adapters))

	for ti, target := range targets {
		for ai, ad := range o.adapters {
			wg.Add(1)
			go func(idx int, target finding.Target, ad adapter.Adapter) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				if err := limiter.Wait(ctx); err != nil {
					mu.Lock()
					slots[idx] = slot{invocation: report.Invocation{
						Target:  target.Identifier,
						Adapter: ad.Name(),
						Status:  report.StatusFailed,
						Detail:  "run cancelled before invocation",
					}}
					mu.Unlock()
					return
				}

				result := o.invoke(ctx, ad, target)

				mu.Lock()
				slots[idx] = slot{findings: result.findings, invocation: result.invocation}
				mu.Unlock()

				if o.opts.OnInvocation != nil {
					o.opts.OnInvocation(result.invocation)
				}
			}(ti*len(o.adapters)+ai, target, ad)
		}
	}

	wg.Wait()

	for _, s := range slots {
		rep.Findings = append(rep.Findings, s.findings...)
		rep.Metadata.Invocations = append(rep.Metadata.Invocations, s.invocation)
	}

	rep.Metadata.CompletedAt = time.Now().UTC()
	rep.Metadata.Partial = ctx.Err() != nil
	rep.SortFindings()
	rep.SortInvocations()

	return rep, nil
}

type invocationResult struct {
	findings   []finding.Finding
	invocation report.Invocation
}

// invoke runs one adapter against one target and classifies the outcome.
func (o *Orchestrator) invoke(ctx context.Context, ad adapter.Adapter, target finding.Target) invocationResult {
	log := o.opts.Logger.With("adapter", ad.Name(), "target", target.Identifier)
	timeout := o.timeoutFor(ad.Name())

	start := time.Now()
	raw, err := ad.Run(ctx, target, timeout)
	duration := time.Since(start).Seconds()

	inv := report.Invocation{
		Target:          target.Identifier,
		Adapter:         ad.Name(),
		DurationSeconds: duration,
	}

	switch {
	case err == nil:
		findings, parseErr := normalize.Findings(ad, target, raw)
		if parseErr != nil {
			log.Warnw("adapter output unparseable", "error", parseErr)
			inv.Status = report.StatusParseError
			inv.Detail = parseErr.Error()
		} else {
			log.Infow("adapter completed", "findings", len(findings), "duration_seconds", duration)
			inv.Status = report.StatusCompleted
		}
		return invocationResult{findings: findings, invocation: inv}

	case errors.Is(err, adapter.ErrTimeout):
		log.Warnw("adapter timed out", "timeout", timeout)
		inv.Status = report.StatusTimedOut
		inv.Detail = fmt.Sprintf("exceeded %s budget", timeout)

	case errors.Is(err, adapter.ErrToolNotFound):
		log.Warnw("adapter tool missing", "tool", ad.Tool())
		inv.Status = report.StatusToolNotFound
		inv.Detail = err.Error()

	case errors.Is(err, context.Canceled):
		inv.Status = report.StatusFailed
		inv.Detail = "run cancelled"

	default:
		// Includes ErrNonZeroExit and transport-level failures.
		log.Warnw("adapter failed", "error", err)
		inv.Status = report.StatusFailed
		inv.Detail = err.Error()
	}

	return invocationResult{invocation: inv}
}

func adapterInfos(adapters []adapter.Adapter) []report.AdapterInfo {
	infos := make([]report.AdapterInfo, 0, len(adapters))
	for _, ad := range adapters {
		infos = append(infos, report.AdapterInfo{Name: ad.Name(), TableVersion: ad.TableVersion()})
	}
	return infos
}
