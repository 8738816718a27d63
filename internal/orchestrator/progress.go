package orchestrator

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// ErrInvalidTransition is returned when a stage is moved out of order.
var ErrInvalidTransition = errors.New("orchestrator: invalid stage transition")

// StageStatus is the lifecycle state of one stage within a run.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusError      StageStatus = "error"
)

// Terminal reports whether s is completed or error.
func (s StageStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StageOutcome records what happened to one stage.
type StageOutcome struct {
	StageID     creative.StageID `json:"stageId"`
	Order       int              `json:"order"`
	Status      StageStatus      `json:"status"`
	Payload     creative.Payload `json:"payload,omitempty"`
	ErrorDetail string           `json:"errorDetail,omitempty"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	FinishedAt  *time.Time       `json:"finishedAt,omitempty"`
}

// Snapshot is a point-in-time copy of a run's progress. It shares no memory
// with the tracker.
type Snapshot struct {
	Stages        []StageOutcome   `json:"stages"`
	ActiveStageID creative.StageID `json:"activeStageId,omitempty"`
	Done          bool             `json:"done"`
}

// Statuses returns the status of each stage in order.
func (s Snapshot) Statuses() []StageStatus {
	out := make([]StageStatus, len(s.Stages))
	for i, o := range s.Stages {
		out[i] = o.Status
	}
	return out
}

// Outcome returns the outcome for id.
func (s Snapshot) Outcome(id creative.StageID) (StageOutcome, bool) {
	for _, o := range s.Stages {
		if o.StageID == id {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Tracker is the per-run stage state machine. Each stage moves
// pending → in_progress → completed|error exactly once and at most one stage
// is in progress at a time. Safe for concurrent readers.
type Tracker struct {
	mu       sync.RWMutex
	stages   []StageOutcome
	active   creative.StageID
	now      func() time.Time
	observer func(ProgressEvent)
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithObserver registers fn to receive an event after every transition.
// fn is called synchronously, outside the tracker's lock.
func WithObserver(fn func(ProgressEvent)) TrackerOption {
	return func(t *Tracker) {
		t.observer = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker returns a tracker with every stage in defs pending, ordered by
// StageDefinition.Order.
func NewTracker(defs []creative.StageDefinition, opts ...TrackerOption) *Tracker {
	t := &Tracker{now: time.Now}
	for _, d := range defs {
		t.stages = append(t.stages, StageOutcome{StageID: d.ID, Order: d.Order, Status: StatusPending})
	}
	slices.SortStableFunc(t.stages, func(a, b StageOutcome) int {
		return cmp.Compare(a.Order, b.Order)
	})
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start moves id from pending to in_progress.
func (t *Tracker) Start(id creative.StageID) error {
	ev, err := t.transition(id, func(o *StageOutcome, at time.Time) error {
		if o.Status != StatusPending {
			return fmt.Errorf("%w: start %s from %s", ErrInvalidTransition, id, o.Status)
		}
		if t.active != "" {
			return fmt.Errorf("%w: start %s while %s is in progress", ErrInvalidTransition, id, t.active)
		}
		o.Status = StatusInProgress
		o.StartedAt = &at
		t.active = id
		return nil
	})
	if err != nil {
		return err
	}
	t.emit(ev)
	return nil
}

// Complete moves id from in_progress to completed and records payload.
func (t *Tracker) Complete(id creative.StageID, payload creative.Payload) error {
	ev, err := t.transition(id, func(o *StageOutcome, at time.Time) error {
		if o.Status != StatusInProgress {
			return fmt.Errorf("%w: complete %s from %s", ErrInvalidTransition, id, o.Status)
		}
		o.Status = StatusCompleted
		o.Payload = creative.Clone(payload)
		o.FinishedAt = &at
		t.active = ""
		return nil
	})
	if err != nil {
		return err
	}
	t.emit(ev)
	return nil
}

// Fail moves id from in_progress to error and records detail.
func (t *Tracker) Fail(id creative.StageID, detail string) error {
	ev, err := t.transition(id, func(o *StageOutcome, at time.Time) error {
		if o.Status != StatusInProgress {
			return fmt.Errorf("%w: fail %s from %s", ErrInvalidTransition, id, o.Status)
		}
		o.Status = StatusError
		o.ErrorDetail = detail
		o.FinishedAt = &at
		t.active = ""
		return nil
	})
	if err != nil {
		return err
	}
	t.emit(ev)
	return nil
}

// Snapshot returns a deep copy of the run state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Stages:        make([]StageOutcome, len(t.stages)),
		ActiveStageID: t.active,
		Done:          t.doneLocked(),
	}
	for i, o := range t.stages {
		o.Payload = creative.Clone(o.Payload)
		if o.StartedAt != nil {
			at := *o.StartedAt
			o.StartedAt = &at
		}
		if o.FinishedAt != nil {
			at := *o.FinishedAt
			o.FinishedAt = &at
		}
		s.Stages[i] = o
	}
	return s
}

// Completed returns the payloads of completed stages in stage order.
func (t *Tracker) Completed() []creative.Payload {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []creative.Payload
	for _, o := range t.stages {
		if o.Status == StatusCompleted && o.Payload != nil {
			out = append(out, creative.Clone(o.Payload))
		}
	}
	return out
}

func (t *Tracker) doneLocked() bool {
	for _, o := range t.stages {
		if !o.Status.Terminal() {
			return false
		}
	}
	return true
}

func (t *Tracker) transition(id creative.StageID, apply func(*StageOutcome, time.Time) error) (ProgressEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.stages {
		o := &t.stages[i]
		if o.StageID != id {
			continue
		}
		if err := apply(o, t.now()); err != nil {
			return ProgressEvent{}, err
		}
		return ProgressEvent{
			Stage:   o.StageID,
			Order:   o.Order,
			Status:  o.Status,
			Message: o.ErrorDetail,
			At:      *lastTime(o),
		}, nil
	}
	return ProgressEvent{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, id)
}

func lastTime(o *StageOutcome) *time.Time {
	if o.FinishedAt != nil {
		return o.FinishedAt
	}
	return o.StartedAt
}

func (t *Tracker) emit(ev ProgressEvent) {
	if t.observer != nil {
		t.observer(ev)
	}
}

// ProgressEvent describes one stage transition.
type ProgressEvent struct {
	RunID    string           `json:"runId,omitempty"`
	TargetID string           `json:"targetId,omitempty"`
	Stage    creative.StageID `json:"stage"`
	Order    int              `json:"order"`
	Status   StageStatus      `json:"status"`
	Message  string           `json:"message,omitempty"`
	At       time.Time        `json:"at"`
}

// ProgressReporter fans progress events into a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffer of 64 events.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, 64)}
}

// Emit sends event without blocking. Events are dropped when the buffer is
// full.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns the receive side of the event channel.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the event channel. Emit must not be called afterwards.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress renders event as a single status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Stage)
	case StatusInProgress:
		return fmt.Sprintf("  ● %s...", event.Stage)
	case StatusCompleted:
		return fmt.Sprintf("  ✓ %s complete", event.Stage)
	case StatusError:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Stage, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Stage)
	}
}

// FormatStageHeader renders "[target] Stage N: id".
func FormatStageHeader(targetID string, def creative.StageDefinition) string {
	return fmt.Sprintf("[%s] Stage %d: %s", targetID, def.Order, def.ID)
}
