package orchestrator

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dusk-indust/onesheet/internal/creative"
)

// DefaultArchiveSize is how many finished runs stay visible to pollers.
const DefaultArchiveSize = 128

// Config holds runtime settings for an Orchestrator. The zero value is
// usable.
type Config struct {
	// StageTimeout bounds each provider call. Zero means
	// DefaultStageTimeout.
	StageTimeout time.Duration

	// ArchiveSize is the number of finished runs retained for Snapshot and
	// Wait. Zero means DefaultArchiveSize.
	ArchiveSize int

	// Logger receives run lifecycle and stage failure records. Nil means
	// slog.Default().
	Logger *slog.Logger

	// Observer receives every stage transition of every run.
	Observer func(ProgressEvent)

	// Stages overrides the pipeline definition. Nil means
	// creative.Definitions().
	Stages []creative.StageDefinition

	// NewRunID generates run ids. Nil means a random UUID.
	NewRunID func() string
}

func (c Config) withDefaults() Config {
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.ArchiveSize <= 0 {
		c.ArchiveSize = DefaultArchiveSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Stages == nil {
		c.Stages = creative.Definitions()
	}
	if c.NewRunID == nil {
		c.NewRunID = uuid.NewString
	}
	return c
}
