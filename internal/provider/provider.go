// Package provider adapts generation back ends to a single call: given a
// stage and its assembled context, return the stage's raw JSON payload.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/onesheet/internal/a2a"
	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/creative"
)

// ErrNoOutput is returned when an agent completes without a JSON data part.
var ErrNoOutput = errors.New("provider: response carried no structured output")

// Request is one stage generation call.
type Request struct {
	Stage   creative.StageID       `json:"stage"`
	ModelID string                 `json:"modelId"`
	Context assembler.StageContext `json:"context"`

	// References lists concept ids produced by earlier stages that the
	// output may link to.
	References []string `json:"references,omitempty"`
}

// Provider generates the raw payload for one stage. Implementations must
// honour ctx cancellation.
type Provider interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// Func adapts an ordinary function to Provider.
type Func func(ctx context.Context, req Request) (json.RawMessage, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

var _ Provider = (*A2AProvider)(nil)

// A2AProvider sends each request as a blocking message/send call to a
// remote agent.
type A2AProvider struct {
	client   a2a.Client
	endpoint string
}

// NewA2AProvider returns a provider targeting endpoint. A nil client uses
// a2a.NewHTTPClient().
func NewA2AProvider(client a2a.Client, endpoint string) *A2AProvider {
	if client == nil {
		client = a2a.NewHTTPClient()
	}
	return &A2AProvider{client: client, endpoint: endpoint}
}

// Generate implements Provider.
func (p *A2AProvider) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	part, err := a2a.DataPart(req)
	if err != nil {
		return nil, fmt.Errorf("provider: encode request: %w", err)
	}
	task, err := p.client.SendMessage(ctx, p.endpoint, a2a.SendMessageRequest{
		Message: a2a.Message{
			MessageID: a2a.NewID(),
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{part},
		},
		Configuration: &a2a.SendMessageConfig{
			AcceptedOutputModes: []string{"application/json"},
			Blocking:            true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", req.Stage, err)
	}

	switch task.Status.State {
	case a2a.TaskStateCompleted:
	case a2a.TaskStateFailed, a2a.TaskStateRejected, a2a.TaskStateCanceled:
		msg := task.StatusText()
		if msg == "" {
			msg = "no detail"
		}
		return nil, fmt.Errorf("provider: %s: agent task %s %s: %s", req.Stage, task.ID, task.Status.State, msg)
	default:
		return nil, fmt.Errorf("provider: %s: agent task %s not finished (state %q)", req.Stage, task.ID, task.Status.State)
	}

	data, ok := task.FirstData()
	if !ok {
		return nil, fmt.Errorf("provider: %s: %w", req.Stage, ErrNoOutput)
	}
	return data, nil
}

// DecodeRequest extracts a Request from an incoming A2A message.
func DecodeRequest(msg a2a.Message) (Request, error) {
	data, ok := msg.Data()
	if !ok {
		return Request{}, errors.New("provider: message has no data part")
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("provider: decode request: %w", err)
	}
	if !req.Stage.Valid() {
		return Request{}, fmt.Errorf("provider: unknown stage %q", req.Stage)
	}
	return req, nil
}
