package assistant

import (
	"context"
	"crypto/subtle"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// Conversation errors.
var (
	ErrBusy         = errors.New("assistant is still answering the previous message")
	ErrEmptyMessage = errors.New("message is empty")
	ErrCancelled    = errors.New("response cancelled")
	ErrClosed       = errors.New("conversation closed")
	ErrAnswered     = errors.New("response already delivered")
)

// Greeting opens every conversation.
const Greeting = "Hi! I'm your incident assistant. I can help you find information about incidents, " +
	"check system status, and answer questions about our incident management process. What would you like to know?"

// apology is appended when an answer could not be computed.
const apology = "Sorry, I couldn't look that up right now. Please try again in a moment."

// suggestedQueries are offered until the user sends the first message.
var suggestedQueries = []string{
	"Show me active incidents for Pizza Hut",
	"Were there any P1 incidents this week?",
	"What's the status of the payment system?",
	"Show incidents affecting mobile apps",
	"Weekly incident summary",
}

// Responder computes the assistant's answer.
type Responder interface {
	Reply(ctx context.Context, utterance string, scope domain.AccessScope) (Response, error)
}

// Conversation is one chat session. It is Idle or AwaitingResponse; while
// awaiting, further messages are rejected with ErrBusy. Turns are append-only.
type Conversation struct {
	id        string
	owner     string
	key       string
	scope     domain.AccessScope
	responder Responder
	delay     time.Duration
	now       func() time.Time

	mu         sync.Mutex
	turns      []domain.Turn
	pending    *Pending
	lastActive time.Time
	closed     bool
	wg         sync.WaitGroup
}

func newConversation(owner string, scope domain.AccessScope, responder Responder, delay time.Duration, now func() time.Time) *Conversation {
	c := &Conversation{
		id:        newTurnID(),
		owner:     owner,
		key:       uuid.NewString(),
		scope:     scope,
		responder: responder,
		delay:     delay,
		now:       now,
	}
	ts := now()
	c.turns = []domain.Turn{{ID: newTurnID(), Speaker: domain.SpeakerAssistant, Content: Greeting, Timestamp: ts}}
	c.lastActive = ts
	return c
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Owner returns the e-mail of the stakeholder who started the conversation.
// It is empty for anonymous visitors.
func (c *Conversation) Owner() string { return c.owner }

// Key returns the secret an anonymous visitor presents to reach the conversation.
func (c *Conversation) Key() string { return c.key }

// Authorize reports whether the caller may use the conversation. Stakeholders
// are matched by e-mail; anonymous visitors must also present the key.
func (c *Conversation) Authorize(email, key string) bool {
	if email != c.owner {
		return false
	}
	if email != "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(c.key)) == 1
}

// Scope returns the access scope answers are restricted to.
func (c *Conversation) Scope() domain.AccessScope { return c.scope }

// Turns returns a copy of the turn history.
func (c *Conversation) Turns() []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.turns)
}

// Typing reports whether an answer is being prepared.
func (c *Conversation) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Suggestions returns example queries while only the greeting exists.
func (c *Conversation) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) > 1 {
		return nil
	}
	return slices.Clone(suggestedQueries)
}

// Pending returns the outstanding answer, or nil when idle.
func (c *Conversation) Pending() *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Conversation) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive, c.pending == nil
}

// Submit appends the user's turn and starts preparing the answer, which is
// appended after the typing delay. The returned handle waits for or cancels it.
func (c *Conversation) Submit(ctx context.Context, text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.pending != nil {
		return nil, ErrBusy
	}

	userTurn := domain.Turn{ID: newTurnID(), Speaker: domain.SpeakerUser, Content: text, Timestamp: c.now()}
	c.turns = append(c.turns, userTurn)
	c.lastActive = userTurn.Timestamp

	// the answer outlives the submitting request but keeps its logger
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &Pending{done: make(chan struct{}), cancel: cancel}
	c.pending = p

	c.wg.Add(1)
	go c.answer(workCtx, p, userTurn)

	return p, nil
}

func (c *Conversation) answer(ctx context.Context, p *Pending, userTurn domain.Turn) {
	defer c.wg.Done()
	defer p.cancel()

	err := sleep(ctx, c.delay)

	var resp Response
	if err == nil {
		resp, err = c.responder.Reply(ctx, userTurn.Content, c.scope)
		if err != nil && ctx.Err() == nil {
			ctxlog.FromContext(ctx).Error("assistant reply failed", "conversation_id", c.id, "error", err)
			resp, err = Response{Content: apology}, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(p.done)

	c.pending = nil
	if err != nil || ctx.Err() != nil {
		p.err = ErrCancelled
		return
	}

	ts := c.now()
	if ts.Before(userTurn.Timestamp) {
		ts = userTurn.Timestamp
	}
	p.turn = domain.Turn{
		ID:         newTurnID(),
		Speaker:    domain.SpeakerAssistant,
		Content:    resp.Content,
		Timestamp:  ts,
		Attachment: resp.Attachment,
	}
	c.turns = append(c.turns, p.turn)
	c.lastActive = ts
}

// Close cancels any pending answer and waits for it to stop.
func (c *Conversation) Close() {
	c.mu.Lock()
	c.closed = true
	p := c.pending
	c.mu.Unlock()

	if p != nil {
		p.Cancel()
	}
	c.wg.Wait()
}

// Pending is the handle of an answer being prepared.
type Pending struct {
	done   chan struct{}
	cancel context.CancelFunc
	turn   domain.Turn
	err    error
}

// Done is closed once the answer is appended or cancelled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the answer is ready. It returns ErrCancelled when the
// answer was cancelled, or ctx.Err() when ctx ends first; in that case the
// answer is still appended to the conversation.
func (p *Pending) Wait(ctx context.Context) (domain.Turn, error) {
	select {
	case <-p.done:
		return p.turn, p.err
	case <-ctx.Done():
		return domain.Turn{}, ctx.Err()
	}
}

// Cancel aborts the answer. Nothing is appended and the conversation returns to idle.
func (p *Pending) Cancel() {
	p.cancel()
}

// CancelAndWait cancels the answer and waits until it settles. It returns
// ErrAnswered when the answer was appended before the cancellation took effect.
func (p *Pending) CancelAndWait(ctx context.Context) error {
	p.Cancel()
	_, err := p.Wait(ctx)
	switch {
	case err == nil:
		return ErrAnswered
	case errors.Is(err, ErrCancelled):
		return nil
	default:
		return err
	}
}

func newTurnID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
