// Package orchestrator drives the OneSheet creative-generation pipeline:
// it validates a request, runs each stage in order through the provider,
// tracks per-stage progress, merges the results and persists the aggregate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
	"github.com/dusk-indust/onesheet/internal/provider"
	"github.com/dusk-indust/onesheet/internal/research"
)

var (
	// ErrAlreadyRunning is returned when the target already has an active run.
	ErrAlreadyRunning = errors.New("orchestrator: already running")

	// ErrPreconditionFailed wraps request validation failures. No stage has
	// run when it is returned.
	ErrPreconditionFailed = errors.New("orchestrator: precondition failed")

	// ErrNotPersisted accompanies a complete Result whose aggregate could not
	// be saved.
	ErrNotPersisted = errors.New("orchestrator: result not persisted")

	// ErrCanceled accompanies a partial Result when the run was canceled
	// between stages.
	ErrCanceled = errors.New("orchestrator: run canceled")

	// ErrUnknownRun is returned for run ids that were never issued or have
	// been evicted from the archive.
	ErrUnknownRun = errors.New("orchestrator: unknown run")
)

// Saver persists a finished aggregate. store.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, targetID string, agg creative.AggregateResult) error
}

// GenerationRequest is the immutable input of one run.
type GenerationRequest struct {
	TargetID           string                 `json:"targetId"`
	ModelID            string                 `json:"modelId"`
	ContextFlags       assembler.ContextFlags `json:"contextFlags"`
	EvidenceSelection  []string               `json:"evidenceSelection"`
	IterationSelection []string               `json:"iterationSelection,omitempty"`
}

// Selection returns the request's normalized evidence selection.
func (r GenerationRequest) Selection() assembler.Selection {
	return assembler.Selection{
		Evidence:  r.EvidenceSelection,
		Iteration: r.IterationSelection,
	}.Normalized()
}

// Result is the outcome of a run.
type Result struct {
	RunID     string                   `json:"runId"`
	TargetID  string                   `json:"targetId"`
	Aggregate creative.AggregateResult `json:"aggregate"`
	Snapshot  Snapshot                 `json:"snapshot"`
	Persisted bool                     `json:"persisted"`
	Canceled  bool                     `json:"canceled"`
}

// RunStatus is what a poller sees for a run id.
type RunStatus struct {
	RunID     string   `json:"runId"`
	TargetID  string   `json:"targetId"`
	Snapshot  Snapshot `json:"snapshot"`
	Finished  bool     `json:"finished"`
	Persisted bool     `json:"persisted"`
	Canceled  bool     `json:"canceled"`
	Error     string   `json:"error,omitempty"`
}

type run struct {
	id       string
	targetID string
	tracker  *Tracker
	done     chan struct{}

	// Set once before done is closed.
	result *Result
	err    error
}

// Orchestrator runs generation requests. Safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	sources research.Sources
	invoker *Invoker
	saver   Saver
	locks   *RunLocks
	logger  *slog.Logger

	mu       sync.Mutex
	runs     map[string]*run
	finished []string
}

// New returns an Orchestrator reading research from sources, generating
// through prov and persisting through saver.
func New(sources research.Sources, prov provider.Provider, saver Saver, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:     cfg,
		sources: sources,
		invoker: NewInvoker(prov, cfg.StageTimeout),
		saver:   saver,
		locks:   NewRunLocks(),
		logger:  cfg.Logger,
		runs:    make(map[string]*run),
	}
}

// Run executes req to completion and returns its result. Canceling ctx stops
// the run after the stage in progress; the partial result is returned with
// ErrCanceled and not persisted. A persistence failure returns the full
// result together with ErrNotPersisted.
func (o *Orchestrator) Run(ctx context.Context, req GenerationRequest) (*Result, error) {
	r, err := o.begin(req)
	if err != nil {
		return nil, err
	}
	o.execute(ctx, r, req)
	return r.result, r.err
}

// Start validates req, launches the run in the background and returns its
// id. ctx governs the run's lifetime, not just the call.
func (o *Orchestrator) Start(ctx context.Context, req GenerationRequest) (string, error) {
	r, err := o.begin(req)
	if err != nil {
		return "", err
	}
	go o.execute(ctx, r, req)
	return r.id, nil
}

// Snapshot returns the current status of runID.
func (o *Orchestrator) Snapshot(runID string) (RunStatus, error) {
	r, ok := o.lookup(runID)
	if !ok {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	st := RunStatus{
		RunID:    r.id,
		TargetID: r.targetID,
		Snapshot: r.tracker.Snapshot(),
	}
	select {
	case <-r.done:
		st.Finished = true
		st.Persisted = r.result.Persisted
		st.Canceled = r.result.Canceled
		if r.err != nil {
			st.Error = r.err.Error()
		}
	default:
	}
	return st, nil
}

// Wait blocks until runID finishes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (*Result, error) {
	r, ok := o.lookup(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Active returns the id of the run currently holding targetID.
func (o *Orchestrator) Active(targetID string) (string, bool) {
	return o.locks.Holder(targetID)
}

func (o *Orchestrator) lookup(runID string) (*run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[runID]
	return r, ok
}

// begin takes the target lock, checks preconditions and registers the run.
func (o *Orchestrator) begin(req GenerationRequest) (*run, error) {
	if req.TargetID == "" {
		return nil, fmt.Errorf("%w: targetId is required", ErrPreconditionFailed)
	}

	id := o.cfg.NewRunID()
	if !o.locks.TryAcquire(req.TargetID, id) {
		holder, _ := o.locks.Holder(req.TargetID)
		return nil, fmt.Errorf("%w: target %s (run %s)", ErrAlreadyRunning, req.TargetID, holder)
	}

	if err := assembler.CheckPreconditions(req.ContextFlags, req.Selection()); err != nil {
		o.locks.Release(req.TargetID, id)
		return nil, fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	}

	r := &run{id: id, targetID: req.TargetID, done: make(chan struct{})}
	observer := o.cfg.Observer
	r.tracker = NewTracker(o.cfg.Stages, WithObserver(func(ev ProgressEvent) {
		if observer != nil {
			ev.RunID = id
			ev.TargetID = req.TargetID
			observer(ev)
		}
	}))

	o.mu.Lock()
	o.runs[id] = r
	o.mu.Unlock()
	return r, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, req GenerationRequest) {
	defer o.finish(r)
	defer o.locks.Release(r.targetID, r.id)

	log := o.logger.With("run", r.id, "target", r.targetID)
	log.Info("orchestrator: run started", "model", req.ModelID)

	sel := req.Selection()
	// Stages always run to completion once started.
	stageCtx := context.WithoutCancel(ctx)

	canceled := false
	for _, def := range o.cfg.Stages {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		if err := o.runStage(stageCtx, r.tracker, def, req, sel); err != nil {
			log.Warn("orchestrator: stage failed", "stage", def.ID, "err", err)
		}
	}

	res := &Result{
		RunID:     r.id,
		TargetID:  r.targetID,
		Aggregate: creative.Merge(r.tracker.Completed()...),
		Canceled:  canceled,
	}

	if canceled {
		res.Snapshot = r.tracker.Snapshot()
		r.result, r.err = res, fmt.Errorf("%w: %v", ErrCanceled, context.Cause(ctx))
		log.Warn("orchestrator: run canceled", "completed", countStatus(res.Snapshot, StatusCompleted))
		return
	}

	if err := o.saver.Save(stageCtx, r.targetID, res.Aggregate); err != nil {
		res.Snapshot = r.tracker.Snapshot()
		r.result, r.err = res, fmt.Errorf("%w: %w", ErrNotPersisted, err)
		log.Error("orchestrator: persist failed", "err", err)
		return
	}
	res.Persisted = true
	res.Snapshot = r.tracker.Snapshot()
	r.result = res
	log.Info("orchestrator: run finished",
		"completed", countStatus(res.Snapshot, StatusCompleted),
		"failed", countStatus(res.Snapshot, StatusError))
}

// runStage moves def through the tracker. The returned error is the stage
// failure already recorded in the tracker.
func (o *Orchestrator) runStage(ctx context.Context, t *Tracker, def creative.StageDefinition, req GenerationRequest, sel assembler.Selection) error {
	if err := t.Start(def.ID); err != nil {
		return err
	}

	sc, err := assembler.Assemble(ctx, def.ID, req.TargetID, req.ContextFlags, sel, o.sources)
	if err != nil {
		return errors.Join(err, t.Fail(def.ID, err.Error()))
	}

	payload, err := o.invoker.Invoke(ctx, def, sc, req.ModelID, PriorFromSnapshot(t.Snapshot()))
	if err != nil {
		return errors.Join(err, t.Fail(def.ID, err.Error()))
	}
	return t.Complete(def.ID, payload)
}

// finish publishes the result and archives the run.
func (o *Orchestrator) finish(r *run) {
	o.mu.Lock()
	defer o.mu.Unlock()

	close(r.done)
	o.finished = append(o.finished, r.id)
	for len(o.finished) > o.cfg.ArchiveSize {
		delete(o.runs, o.finished[0])
		o.finished = slices.Delete(o.finished, 0, 1)
	}
}

func countStatus(s Snapshot, status StageStatus) int {
	n := 0
	for _, o := range s.Stages {
		if o.Status == status {
			n++
		}
	}
	return n
}
