// Package orchestrator runs the conversation loop: it selects a language
// model through the credential chain, carries bounded per-user history,
// parses tool calls out of model replies, dispatches them against the task
// service, and feeds the results back until the model produces plain text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rgoodwin/taskmate/internal/credstore"
	"github.com/rgoodwin/taskmate/internal/llm"
	"github.com/rgoodwin/taskmate/internal/session"
	"github.com/rgoodwin/taskmate/internal/task"
	"github.com/rgoodwin/taskmate/internal/tools"
	"github.com/rgoodwin/taskmate/pkg/types"
)

// maxToolSteps bounds the dispatch loop so a looping model cannot spin
// forever.
const maxToolSteps = 6

// ProviderSelector resolves credentials to a provider. Tests substitute a
// fake; production uses llm.SelectProvider.
type ProviderSelector func(creds llm.Credentials) (llm.Provider, error)

// Options configures an Orchestrator.
type Options struct {
	HistoryLimit int              // persisted turns per user, 0 = session default
	Selector     ProviderSelector // nil = llm.SelectProvider
	Clock        func() time.Time // nil = time.Now
}

// Orchestrator ties the conversation pieces together for all users.
type Orchestrator struct {
	svc      *task.Service
	store    task.Store
	creds    *credstore.Manager
	sessions *session.Registry
	selector ProviderSelector
	limit    int
	now      func() time.Time
}

// New creates an orchestrator over the given collaborators.
func New(svc *task.Service, store task.Store, creds *credstore.Manager, sessions *session.Registry, opts Options) *Orchestrator {
	if opts.Selector == nil {
		opts.Selector = llm.SelectProvider
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = session.DefaultCapacity
	}
	return &Orchestrator{
		svc:      svc,
		store:    store,
		creds:    creds,
		sessions: sessions,
		selector: opts.Selector,
		limit:    opts.HistoryLimit,
		now:      opts.Clock,
	}
}

// Chat processes one user message and returns the assistant's reply.
// Provider failures come back as a friendly sentence, not an error; only
// storage problems surface as errors.
func (o *Orchestrator) Chat(ctx context.Context, userID, message string) (string, error) {
	if err := o.store.EnsureUser(ctx, userID); err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}

	provider, err := o.provider(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("no provider available")
		return llm.UserMessage(err), nil
	}

	sess := o.sessions.GetOrCreate(userID)
	if sess.Len() == 0 {
		if history, err := o.store.ChatHistory(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("could not load chat history")
		} else if len(history) > 0 {
			sess.Seed(history)
		}
	}
	sess.SetSystem(systemPrompt(o.now()))

	sess.Append(types.RoleUser, message)
	o.persistTurn(ctx, userID, types.RoleUser, message)

	dispatcher := tools.NewDispatcher(o.svc, userID)

	reply, err := o.runToolLoop(ctx, provider, sess, dispatcher)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("provider", provider.Name()).
			Msg("conversation failed")
		return llm.UserMessage(err), nil
	}

	sess.Append(types.RoleAssistant, reply)
	o.persistTurn(ctx, userID, types.RoleAssistant, reply)

	return reply, nil
}

// runToolLoop alternates model calls and tool dispatches until the model
// replies with plain text or the step budget runs out.
func (o *Orchestrator) runToolLoop(ctx context.Context, provider llm.Provider, sess *session.Session, dispatcher *tools.Dispatcher) (string, error) {
	for step := 0; step < maxToolSteps; step++ {
		resp, err := provider.Chat(ctx, &llm.ChatRequest{
			SystemPrompt: firstSystem(sess),
			Messages:     conversationMessages(sess),
		})
		if err != nil {
			return "", err
		}

		calls, text := ParseToolCalls(resp.Content)
		if len(calls) == 0 {
			return text, nil
		}

		sess.Append(types.RoleAssistant, resp.Content)
		for _, call := range calls {
			res := dispatcher.Dispatch(ctx, call.Name, call.Params)
			log.Debug().Str("tool", call.Name).Bool("success", res.Success).
				Msg("tool call dispatched")
			sess.Append(types.RoleUser, FormatToolResult(call, res))
		}
	}

	return "", errors.New("tool loop exceeded step budget")
}

// ClearHistory drops the user's conversation, both in memory and persisted,
// returning how many persisted turns were removed.
func (o *Orchestrator) ClearHistory(ctx context.Context, userID string) (int, error) {
	if sess := o.sessions.Get(userID); sess != nil {
		sess.Clear()
	}
	return o.store.ClearChatHistory(ctx, userID)
}

// provider walks the credential chain: stored user keys first, then the
// environment.
func (o *Orchestrator) provider(ctx context.Context, userID string) (llm.Provider, error) {
	var creds llm.Credentials
	if o.creds != nil {
		keys, err := o.creds.Get(ctx, userID)
		switch {
		case err == nil:
			creds.GeminiKey = keys.Gemini
			creds.OpenAIKey = keys.OpenAI
		case errors.Is(err, credstore.ErrNoKeys):
			// fall through to environment
		default:
			log.Warn().Err(err).Str("user_id", userID).Msg("could not load stored keys")
		}
	}
	return o.selector(creds)
}

// persistTurn writes a turn through to durable history. Persistence trouble
// is logged, not fatal: the in-memory session still carries the turn.
func (o *Orchestrator) persistTurn(ctx context.Context, userID string, role types.ChatRole, content string) {
	err := o.store.AppendChatMessage(ctx, userID, types.ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: o.now().UTC(),
	}, o.limit)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not persist chat turn")
	}
}

// firstSystem returns the session's system message content, if set.
func firstSystem(sess *session.Session) string {
	history := sess.History(true)
	if len(history) > 0 && history[0].Role == types.RoleSystem {
		return history[0].Content
	}
	return ""
}

// conversationMessages converts retained turns to the provider's format,
// excluding the system message.
func conversationMessages(sess *session.Session) []llm.Message {
	turns := sess.History(false)
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}
