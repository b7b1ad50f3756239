package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/taskmate/internal/credstore"
	"github.com/rgoodwin/taskmate/internal/llm"
	"github.com/rgoodwin/taskmate/internal/session"
	"github.com/rgoodwin/taskmate/internal/task"
	"github.com/rgoodwin/taskmate/pkg/types"
)

// scriptedProvider replays canned responses and records the requests it saw.
type scriptedProvider struct {
	responses []string
	errs      []error
	requests  []*llm.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	content := "done"
	if i < len(p.responses) {
		content = p.responses[i]
	}
	return &llm.ChatResponse{Content: content, Model: "scripted"}, nil
}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Available() bool { return true }

type fixture struct {
	orch     *Orchestrator
	store    *task.MemoryStore
	svc      *task.Service
	provider *scriptedProvider
}

func newFixture(t *testing.T, responses []string, errs []error) *fixture {
	t.Helper()

	clock := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	store := task.NewMemoryStore()
	svc := task.NewService(store, clock)
	creds, err := credstore.NewManager(store, "unit-test-secret")
	require.NoError(t, err)

	provider := &scriptedProvider{responses: responses, errs: errs}
	orch := New(svc, store, creds, session.NewRegistry(10), Options{
		Selector: func(llm.Credentials) (llm.Provider, error) { return provider, nil },
		Clock:    clock,
	})
	return &fixture{orch: orch, store: store, svc: svc, provider: provider}
}

func TestChatPlainConversation(t *testing.T) {
	f := newFixture(t, []string{"Hello! How can I help with your tasks?"}, nil)

	reply, err := f.orch.Chat(context.Background(), "u1", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help with your tasks?", reply)

	// Both turns are written through to durable history.
	history, err := f.store.ChatHistory(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi there", history[0].Content)
}

func TestChatExecutesToolCall(t *testing.T) {
	f := newFixture(t, []string{
		`<tool>create_task</tool><params>{"description": "Buy milk", "priority": "high"}</params>`,
		"I've added Buy milk to your list.",
	}, nil)

	ctx := context.Background()
	reply, err := f.orch.Chat(ctx, "u1", "remind me to buy milk")
	require.NoError(t, err)
	assert.Equal(t, "I've added Buy milk to your list.", reply)

	tasks, total, err := f.svc.List(ctx, "u1", task.Filter{}, task.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Buy milk", tasks[0].Description)

	// Second request carries the tool result as an observation.
	require.Len(t, f.provider.requests, 2)
	second := f.provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Contains(t, last.Content, "create_task")
	assert.Contains(t, last.Content, `"success":true`)
}

func TestChatToolErrorIsFedBack(t *testing.T) {
	f := newFixture(t, []string{
		`<tool>complete_task</tool><params>{"task_id": "missing1"}</params>`,
		"I couldn't find that task.",
	}, nil)

	reply, err := f.orch.Chat(context.Background(), "u1", "finish the report task")
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find that task.", reply)

	second := f.provider.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Contains(t, last.Content, "task_not_found")
}

func TestChatStepBudget(t *testing.T) {
	// A model that calls tools forever gets cut off with a friendly message.
	responses := make([]string, maxToolSteps+2)
	for i := range responses {
		responses[i] = `<tool>get_stats</tool><params>{}</params>`
	}
	f := newFixture(t, responses, nil)

	reply, err := f.orch.Chat(context.Background(), "u1", "stats please")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Len(t, f.provider.requests, maxToolSteps)
}

func TestChatProviderFailureBecomesFriendlyReply(t *testing.T) {
	f := newFixture(t, nil, []error{&llm.StatusError{Provider: "scripted", StatusCode: 429}})

	reply, err := f.orch.Chat(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Contains(t, reply, "rate-limiting")
}

func TestChatNoCredentials(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	store := task.NewMemoryStore()
	svc := task.NewService(store, clock)
	creds, err := credstore.NewManager(store, "unit-test-secret")
	require.NoError(t, err)

	orch := New(svc, store, creds, session.NewRegistry(10), Options{
		Selector: func(llm.Credentials) (llm.Provider, error) { return nil, llm.ErrNoCredentials },
		Clock:    clock,
	})

	reply, err := orch.Chat(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Contains(t, reply, "API key")
}

func TestChatUsesStoredCredentials(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	store := task.NewMemoryStore()
	svc := task.NewService(store, clock)
	creds, err := credstore.NewManager(store, "unit-test-secret")
	require.NoError(t, err)
	require.NoError(t, creds.Save(context.Background(), "u1", credstore.Keys{Gemini: "AIzaSyExample12345"}))

	var seen llm.Credentials
	provider := &scriptedProvider{responses: []string{"hello"}}
	orch := New(svc, store, creds, session.NewRegistry(10), Options{
		Selector: func(c llm.Credentials) (llm.Provider, error) {
			seen = c
			return provider, nil
		},
		Clock: clock,
	})

	_, err = orch.Chat(context.Background(), "u1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExample12345", seen.GeminiKey)
}

func TestChatSeedsSessionFromPersistedHistory(t *testing.T) {
	f := newFixture(t, []string{"Welcome back!"}, nil)
	ctx := context.Background()

	require.NoError(t, f.store.AppendChatMessage(ctx, "u1",
		chatMsg("user", "earlier question"), 10))
	require.NoError(t, f.store.AppendChatMessage(ctx, "u1",
		chatMsg("assistant", "earlier answer"), 10))

	_, err := f.orch.Chat(ctx, "u1", "do you remember?")
	require.NoError(t, err)

	req := f.provider.requests[0]
	require.GreaterOrEqual(t, len(req.Messages), 3)
	assert.Equal(t, "earlier question", req.Messages[0].Content)
	assert.Equal(t, "earlier answer", req.Messages[1].Content)
	assert.NotEmpty(t, req.SystemPrompt)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, []string{"hi", "hi again"}, nil)
	ctx := context.Background()

	_, err := f.orch.Chat(ctx, "u1", "hello")
	require.NoError(t, err)

	cleared, err := f.orch.ClearHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	history, err := f.store.ChatHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func chatMsg(role, content string) types.ChatMessage {
	return types.ChatMessage{
		Role:      types.ChatRole(role),
		Content:   content,
		CreatedAt: time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC),
	}
}
