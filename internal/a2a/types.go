// Package a2a is a small agent-to-agent transport: JSON-RPC 2.0 over HTTP
// carrying tasks, messages and artifacts. The onesheet pipeline uses it to
// reach remote generation agents and to expose the draft agent.
package a2a

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateRejected  TaskState = "rejected"
)

// IsTerminal reports whether no further transitions can happen.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// Role identifies the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// NewID returns a random UUIDv4 for tasks, messages and artifacts.
func NewID() string {
	return uuid.NewString()
}

// Task is one unit of work handled by an agent.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []Message  `json:"history,omitempty"`
}

// TaskStatus is the current state and when it was entered.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusText returns the text parts of the status message joined by
// newlines, or "" if there is none.
func (t *Task) StatusText() string {
	if t.Status.Message == nil {
		return ""
	}
	return t.Status.Message.Text()
}

// FirstData returns the first JSON data part of the first artifact that has
// one.
func (t *Task) FirstData() (json.RawMessage, bool) {
	for _, a := range t.Artifacts {
		for _, p := range a.Parts {
			if len(p.Data) > 0 {
				return p.Data, true
			}
		}
	}
	return nil, false
}

// Message is a unit of communication between a client and an agent.
type Message struct {
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// Data returns the first data part of the message.
func (m Message) Data() (json.RawMessage, bool) {
	for _, p := range m.Parts {
		if len(p.Data) > 0 {
			return p.Data, true
		}
	}
	return nil, false
}

// Part carries either text or structured JSON.
type Part struct {
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// TextPart creates a text Part.
func TextPart(text string) Part {
	return Part{Text: text, MediaType: "text/plain"}
}

// DataPart creates a Part holding v encoded as JSON.
func DataPart(v any) (Part, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Part{}, err
	}
	return Part{Data: data, MediaType: "application/json"}, nil
}

// Artifact is an output produced by an agent for a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

// AgentCard is the manifest served at /.well-known/agent-card.json.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Version            string       `json:"version"`
	URL                string       `json:"url,omitempty"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Skills             []AgentSkill `json:"skills"`
}

// AgentSkill declares one capability of an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// SendMessageRequest is the params object of message/send.
type SendMessageRequest struct {
	Message       Message            `json:"message"`
	Configuration *SendMessageConfig `json:"configuration,omitempty"`
}

// SendMessageConfig controls message handling.
type SendMessageConfig struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	Blocking            bool     `json:"blocking"`
}

// GetTaskRequest is the params object of tasks/get.
type GetTaskRequest struct {
	ID string `json:"id"`
}
