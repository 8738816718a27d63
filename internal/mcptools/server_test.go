package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/onesheet/internal/agent"
	"github.com/dusk-indust/onesheet/internal/assembler"
	"github.com/dusk-indust/onesheet/internal/orchestrator"
	"github.com/dusk-indust/onesheet/internal/research"
	"github.com/dusk-indust/onesheet/internal/store"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T) (*mcp.ClientSession, *orchestrator.Orchestrator) {
	t.Helper()

	src := research.NewStaticSources()
	src.Put("sheet-1", research.Bundle{
		Audience: research.Audience{Angles: []string{"speed", "price"}},
		AdPerformance: []research.AdRecord{
			{ID: "ad-1", Name: "UGC", Spend: 10, Revenue: 30},
		},
	})
	st := store.NewMemStore()
	orch := orchestrator.New(src, agent.NewDraftAgent("test"), st, orchestrator.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	server := NewMCPServer(NewService(context.Background(), orch, st))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, serverT, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)

	t.Cleanup(func() { session.Close() })
	return session, orch
}

// callTool invokes name and decodes its structured output into out. It
// reports whether the call succeeded.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args, out any) bool {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return false
	}
	if result.IsError {
		return false
	}
	require.NotNil(t, result.StructuredContent, "expected structured content from %s", name)
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
	return true
}

func generationArgs(wait bool) RunGenerationInput {
	return RunGenerationInput{
		TargetID: "sheet-1",
		ModelID:  "draft",
		ContextFlags: &assembler.ContextFlags{
			AdAudit:          assembler.AdAuditFlags{Enabled: true},
			AudienceResearch: assembler.AudienceResearchFlags{Angles: true},
		},
		EvidenceSelection: []string{"ad-1"},
		Wait:              wait,
	}
}

func TestMCPListTools(t *testing.T) {
	session, _ := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"get_run", "hooks_for_concept", "list_onesheets", "load_onesheet", "run_generation"}, names)
}

func TestMCPRunGeneration_Wait(t *testing.T) {
	session, _ := setupServerClient(t)

	var out RunGenerationOutput
	require.True(t, callTool(t, session, "run_generation", generationArgs(true), &out))
	assert.Equal(t, "completed", out.Status)
	assert.True(t, out.Persisted)
	require.Len(t, out.Stages, 5)
	for _, s := range out.Stages {
		assert.Equal(t, "completed", s.Status, s.Stage)
	}

	var sheet LoadOneSheetOutput
	require.True(t, callTool(t, session, "load_onesheet", LoadOneSheetInput{TargetID: "sheet-1"}, &sheet))
	assert.Len(t, sheet.OneSheet.Concepts, 2)

	var hooks HooksForConceptOutput
	require.True(t, callTool(t, session, "hooks_for_concept", HooksForConceptInput{TargetID: "sheet-1", ConceptID: "concept-2"}, &hooks))
	require.Len(t, hooks.Hooks, 2)
	assert.Equal(t, "visual", hooks.Hooks[0].Kind)
	assert.Equal(t, "audio", hooks.Hooks[1].Kind)

	var list ListOneSheetsOutput
	require.True(t, callTool(t, session, "list_onesheets", ListOneSheetsInput{}, &list))
	assert.Equal(t, []string{"sheet-1"}, list.Targets)
}

func TestMCPRunGeneration_StartThenPoll(t *testing.T) {
	session, orch := setupServerClient(t)

	var started RunGenerationOutput
	require.True(t, callTool(t, session, "run_generation", generationArgs(false), &started))
	assert.Equal(t, "started", started.Status)
	require.NotEmpty(t, started.RunID)

	_, err := orch.Wait(context.Background(), started.RunID)
	require.NoError(t, err)

	var run GetRunOutput
	require.True(t, callTool(t, session, "get_run", GetRunInput{RunID: started.RunID}, &run))
	assert.Equal(t, "sheet-1", run.TargetID)
	assert.True(t, run.Finished)
	assert.True(t, run.Persisted)
	assert.Len(t, run.Stages, 5)
}

func TestMCPRunGeneration_PreconditionIsToolError(t *testing.T) {
	session, _ := setupServerClient(t)

	args := generationArgs(true)
	args.ContextFlags.AdAudit.SelectedAdsOnly = true
	args.EvidenceSelection = nil

	var out RunGenerationOutput
	assert.False(t, callTool(t, session, "run_generation", args, &out))
}

func TestMCPErrorsForUnknownIDs(t *testing.T) {
	session, _ := setupServerClient(t)

	var run GetRunOutput
	assert.False(t, callTool(t, session, "get_run", GetRunInput{RunID: "nope"}, &run))

	var sheet LoadOneSheetOutput
	assert.False(t, callTool(t, session, "load_onesheet", LoadOneSheetInput{TargetID: "nope"}, &sheet))
}

func TestMCPListOneSheets_Empty(t *testing.T) {
	session, _ := setupServerClient(t)

	var list ListOneSheetsOutput
	require.True(t, callTool(t, session, "list_onesheets", ListOneSheetsInput{}, &list))
	assert.Empty(t, list.Targets)
}

func TestMCPCallUnknownTool(t *testing.T) {
	session, _ := setupServerClient(t)
	var out map[string]any
	assert.False(t, callTool(t, session, "nonexistent_tool", map[string]any{}, &out))
}

func TestRunHTTP_StopsOnCancel(t *testing.T) {
	server := NewMCPServer(NewService(context.Background(), nil, store.NewMemStore()))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunHTTP(ctx, server, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunHTTP did not return after cancel")
	}
}
