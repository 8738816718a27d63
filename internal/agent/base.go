package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dusk-indust/onesheet/internal/a2a"
)

// Compile-time interface checks.
var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc handles one incoming message. It receives the task in the
// working state and returns the artifacts to attach on completion.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent composes an A2A server and task store around a ProcessFunc.
type BaseAgent struct {
	server  *a2a.Server
	store   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
	now     func() time.Time
}

// NewBaseAgent creates a BaseAgent with the given card and process function.
func NewBaseAgent(card a2a.AgentCard, process ProcessFunc) *BaseAgent {
	b := &BaseAgent{
		store:   a2a.NewTaskStore(),
		card:    card,
		process: process,
		now:     time.Now,
	}
	b.server = a2a.NewServer(card, b)
	return b
}

// Card returns the agent's A2A Agent Card.
func (b *BaseAgent) Card() a2a.AgentCard {
	return b.card
}

// HandleTask moves task through submitted and working to completed or
// failed. A failed task is returned together with the process error.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	task.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: b.now()}
	task.History = []a2a.Message{msg}
	if err := b.store.Create(task); err != nil {
		return nil, fmt.Errorf("agent: create task: %w", err)
	}

	if err := b.setState(task.ID, a2a.TaskStateWorking, nil); err != nil {
		return nil, err
	}
	task.Status.State = a2a.TaskStateWorking

	artifacts, err := b.process(ctx, &task, msg)
	if err != nil {
		reason := &a2a.Message{
			MessageID: a2a.NewID(),
			TaskID:    task.ID,
			Role:      a2a.RoleAgent,
			Parts:     []a2a.Part{a2a.TextPart(err.Error())},
		}
		_ = b.setState(task.ID, a2a.TaskStateFailed, reason)
		result, _ := b.store.Get(task.ID)
		return result, err
	}

	if err := b.store.Update(task.ID, func(t *a2a.Task) {
		t.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: b.now()}
		t.Artifacts = artifacts
	}); err != nil {
		return nil, fmt.Errorf("agent: complete task: %w", err)
	}
	return b.store.Get(task.ID)
}

func (b *BaseAgent) setState(id string, state a2a.TaskState, msg *a2a.Message) error {
	err := b.store.Update(id, func(t *a2a.Task) {
		t.Status = a2a.TaskStatus{State: state, Message: msg, Timestamp: b.now()}
	})
	if err != nil {
		return fmt.Errorf("agent: task %s to %s: %w", id, state, err)
	}
	return nil
}

// Handler returns the agent's HTTP routes.
func (b *BaseAgent) Handler() http.Handler {
	return b.server.Handler()
}

// Serve accepts A2A calls on ln until ctx is canceled.
func (b *BaseAgent) Serve(ctx context.Context, ln net.Listener) error {
	return b.server.Serve(ctx, ln)
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (b *BaseAgent) ListenAndServe(ctx context.Context, addr string) error {
	return b.server.ListenAndServe(ctx, addr)
}

// --- a2a.Handler implementation ---

// HandleSendMessage creates a task for the message and processes it.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	task := a2a.Task{
		ID:        a2a.NewID(),
		ContextID: req.Message.ContextID,
	}
	if task.ContextID == "" {
		task.ContextID = a2a.NewID()
	}
	return b.HandleTask(ctx, task, req.Message)
}

// HandleGetTask retrieves a task by ID from the store.
func (b *BaseAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return b.store.Get(req.ID)
}
