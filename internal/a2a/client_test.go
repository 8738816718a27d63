package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler completes every task with the message's data part as artifact.
type echoHandler struct {
	store *TaskStore
	fail  error
}

func newEchoHandler() *echoHandler {
	return &echoHandler{store: NewTaskStore()}
}

func (h *echoHandler) HandleSendMessage(_ context.Context, req SendMessageRequest) (*Task, error) {
	task := Task{ID: NewID(), Status: TaskStatus{State: TaskStateCompleted, Timestamp: time.Now()}}
	if h.fail != nil {
		task.Status.State = TaskStateFailed
		task.Status.Message = &Message{Role: RoleAgent, Parts: []Part{TextPart(h.fail.Error())}}
		_ = h.store.Create(task)
		return &task, h.fail
	}
	if data, ok := req.Message.Data(); ok {
		task.Artifacts = []Artifact{{ArtifactID: NewID(), Name: "echo", Parts: []Part{{Data: data}}}}
	}
	if err := h.store.Create(task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (h *echoHandler) HandleGetTask(_ context.Context, req GetTaskRequest) (*Task, error) {
	return h.store.Get(req.ID)
}

func testCard() AgentCard {
	return AgentCard{
		Name:               "echo",
		Description:        "echoes data parts",
		Version:            "0.0.1",
		DefaultInputModes:  []string{"application/json"},
		DefaultOutputModes: []string{"application/json"},
		Skills:             []AgentSkill{{ID: "echo", Name: "Echo", Description: "echo"}},
	}
}

func TestHTTPClient_SendMessageRoundTrip(t *testing.T) {
	h := newEchoHandler()
	ts := httptest.NewServer(NewServer(testCard(), h).Handler())
	defer ts.Close()

	part, err := DataPart(map[string]any{"concepts": []any{}})
	require.NoError(t, err)

	client := NewHTTPClient()
	task, err := client.SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message:       Message{MessageID: NewID(), Role: RoleUser, Parts: []Part{part}},
		Configuration: &SendMessageConfig{Blocking: true},
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, task.Status.State)

	data, ok := task.FirstData()
	require.True(t, ok)
	assert.JSONEq(t, `{"concepts": []}`, string(data))

	got, err := client.GetTask(context.Background(), ts.URL, GetTaskRequest{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestHTTPClient_FailedTaskCarriesStatusText(t *testing.T) {
	h := newEchoHandler()
	h.fail = errors.New("model overloaded")
	ts := httptest.NewServer(NewServer(testCard(), h).Handler())
	defer ts.Close()

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message: Message{MessageID: NewID(), Role: RoleUser, Parts: []Part{TextPart("go")}},
	})
	require.NoError(t, err)
	assert.Equal(t, TaskStateFailed, task.Status.State)
	assert.Equal(t, "model overloaded", task.StatusText())
	_, ok := task.FirstData()
	assert.False(t, ok)
}

func TestHTTPClient_UnknownTaskIsRPCError(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), newEchoHandler()).Handler())
	defer ts.Close()

	_, err := NewHTTPClient().GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "nope"})
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
	assert.Equal(t, MethodGetTask, rpcErr.Method)
}

func TestHTTPClient_MethodNotFound(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), newEchoHandler()).Handler())
	defer ts.Close()

	err := NewHTTPClient().call(context.Background(), ts.URL, "tasks/list", struct{}{}, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeMethodNotFound, rpcErr.Code)
}

func TestHTTPClient_HTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestHTTPClient_DiscoverAgent(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), newEchoHandler()).Handler())
	defer ts.Close()

	card, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "echo", card.Name)
	require.Len(t, card.Skills, 1)
}

func TestServer_ParseError(t *testing.T) {
	ts := httptest.NewServer(NewServer(testCard(), newEchoHandler()).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL, "application/json", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeParse, rpcResp.Error.Code)
}

func TestMessage_Text(t *testing.T) {
	m := Message{Parts: []Part{TextPart("a"), {Data: json.RawMessage(`{}`)}, TextPart("b")}}
	assert.Equal(t, "a\nb", m.Text())
}
