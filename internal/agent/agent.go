// Package agent hosts generation agents behind the A2A protocol.
package agent

import (
	"context"
	"net"

	"github.com/dusk-indust/onesheet/internal/a2a"
)

// Agent is the interface every hosted agent implements.
type Agent interface {
	// Card returns the agent's A2A Agent Card.
	Card() a2a.AgentCard

	// HandleTask processes an A2A task and returns the finished task.
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)

	// Serve accepts A2A calls on ln until ctx is canceled.
	Serve(ctx context.Context, ln net.Listener) error
}
