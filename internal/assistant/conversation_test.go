package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeResponder answers with a fixed response. When gate is set, Reply blocks
// until the gate is closed or ctx ends.
type fakeResponder struct {
	resp Response
	err  error
	gate chan struct{}

	mu     sync.Mutex
	scopes []domain.AccessScope
}

func (f *fakeResponder) Reply(ctx context.Context, _ string, scope domain.AccessScope) (Response, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func (f *fakeResponder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scopes)
}

// steppingClock returns a time one second later on every call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

var testScope = domain.AccessScope{Brands: []string{"KFC"}, Markets: []string{"EMEA"}}

func newTestConversation(r Responder, delay time.Duration) *Conversation {
	return newConversation("ops@example.com", testScope, r, delay, steppingClock(time.Date(2025, 1, 22, 9, 0, 0, 0, time.UTC)))
}

func TestConversation_StartsWithGreeting(t *testing.T) {
	c := newTestConversation(&fakeResponder{}, 0)
	defer c.Close()

	turns := c.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, domain.SpeakerAssistant, turns[0].Speaker)
	assert.Equal(t, Greeting, turns[0].Content)
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "ops@example.com", c.Owner())
	assert.Equal(t, testScope, c.Scope())
	assert.False(t, c.Typing())
	assert.Len(t, c.Suggestions(), 5)
}

func TestConversation_Submit_AppendsTwoTurns(t *testing.T) {
	attachment := domain.IncidentListAttachment{Incidents: []domain.IncidentSummary{{ID: "INC-002"}}}
	responder := &fakeResponder{resp: Response{Rule: RuleActiveIncidents, Content: "two open", Attachment: attachment}}
	c := newTestConversation(responder, 10*time.Millisecond)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "  anything open?  ")
	require.NoError(t, err)

	turn, err := pending.Wait(context.Background())
	require.NoError(t, err)

	turns := c.Turns()
	require.Len(t, turns, 3)

	user, bot := turns[1], turns[2]
	assert.Equal(t, domain.SpeakerUser, user.Speaker)
	assert.Equal(t, "anything open?", user.Content)
	assert.Equal(t, domain.SpeakerAssistant, bot.Speaker)
	assert.Equal(t, "two open", bot.Content)
	assert.Equal(t, attachment, bot.Attachment)
	assert.Equal(t, turn, bot)
	assert.False(t, bot.Timestamp.Before(user.Timestamp))
	assert.NotEqual(t, user.ID, bot.ID)

	assert.Equal(t, []domain.AccessScope{testScope}, responder.scopes)
	assert.False(t, c.Typing())
	assert.Nil(t, c.Suggestions())
}

func TestConversation_Submit_EmptyMessage(t *testing.T) {
	c := newTestConversation(&fakeResponder{}, 0)
	defer c.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Len(t, c.Turns(), 1)
}

func TestConversation_Submit_BusyWhileAwaiting(t *testing.T) {
	responder := &fakeResponder{resp: Response{Content: "done"}, gate: make(chan struct{})}
	c := newTestConversation(responder, 0)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "status")
	require.NoError(t, err)
	assert.True(t, c.Typing())
	assert.Same(t, pending, c.Pending())

	_, err = c.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, c.Turns(), 2, "rejected message is not appended")

	close(responder.gate)
	_, err = pending.Wait(context.Background())
	require.NoError(t, err)

	assert.False(t, c.Typing())
	assert.Nil(t, c.Pending())

	next, err := c.Submit(context.Background(), "again")
	require.NoError(t, err)
	_, err = next.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Turns(), 5)
}

func TestConversation_Cancel(t *testing.T) {
	responder := &fakeResponder{resp: Response{Content: "late"}}
	c := newTestConversation(responder, time.Hour)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "weekly summary")
	require.NoError(t, err)

	pending.Cancel()
	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	turns := c.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.SpeakerUser, turns[1].Speaker)
	assert.False(t, c.Typing())
	assert.Zero(t, responder.calls(), "cancelled during the typing delay")
}

func TestPending_CancelAndWait(t *testing.T) {
	t.Run("cancelled while typing", func(t *testing.T) {
		c := newTestConversation(&fakeResponder{resp: Response{Content: "late"}}, time.Hour)
		defer c.Close()

		pending, err := c.Submit(context.Background(), "status")
		require.NoError(t, err)

		require.NoError(t, pending.CancelAndWait(context.Background()))
		assert.Len(t, c.Turns(), 2)
		assert.False(t, c.Typing())
	})

	t.Run("answer already appended", func(t *testing.T) {
		c := newTestConversation(&fakeResponder{resp: Response{Content: "done"}}, 0)
		defer c.Close()

		pending, err := c.Submit(context.Background(), "status")
		require.NoError(t, err)
		_, err = pending.Wait(context.Background())
		require.NoError(t, err)

		assert.ErrorIs(t, pending.CancelAndWait(context.Background()), ErrAnswered)

		turns := c.Turns()
		require.Len(t, turns, 3)
		assert.Equal(t, "done", turns[2].Content)
	})
}

func TestConversation_Authorize(t *testing.T) {
	stakeholder := newTestConversation(&fakeResponder{}, 0)
	defer stakeholder.Close()
	anonymous := newConversation("", testScope, &fakeResponder{}, 0, time.Now)
	defer anonymous.Close()

	require.NotEmpty(t, anonymous.Key())
	assert.NotEqual(t, anonymous.Key(), stakeholder.Key())

	tests := []struct {
		name  string
		conv  *Conversation
		email string
		key   string
		want  bool
	}{
		{name: "owner", conv: stakeholder, email: "ops@example.com", want: true},
		{name: "other stakeholder", conv: stakeholder, email: "intruder@example.com", key: stakeholder.Key(), want: false},
		{name: "anonymous on stakeholder conversation", conv: stakeholder, key: stakeholder.Key(), want: false},
		{name: "anonymous with key", conv: anonymous, key: anonymous.Key(), want: true},
		{name: "anonymous without key", conv: anonymous, want: false},
		{name: "anonymous with wrong key", conv: anonymous, key: stakeholder.Key(), want: false},
		{name: "stakeholder on anonymous conversation", conv: anonymous, email: "ops@example.com", key: anonymous.Key(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.conv.Authorize(tt.email, tt.key))
		})
	}
}

func TestConversation_ReplyErrorBecomesApology(t *testing.T) {
	c := newTestConversation(&fakeResponder{err: errors.New("template exploded")}, 0)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "help")
	require.NoError(t, err)

	turn, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, apology, turn.Content)
	assert.Nil(t, turn.Attachment)
	assert.Len(t, c.Turns(), 3)
}

func TestConversation_WaitContextEnds(t *testing.T) {
	responder := &fakeResponder{resp: Response{Content: "eventually"}, gate: make(chan struct{})}
	c := newTestConversation(responder, 0)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "status")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(responder.gate)
	<-pending.Done()
	assert.Len(t, c.Turns(), 3, "answer is appended after the waiter left")
}

func TestConversation_SubmitterContextDoesNotCancelAnswer(t *testing.T) {
	c := newTestConversation(&fakeResponder{resp: Response{Content: "ok"}}, 10*time.Millisecond)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pending, err := c.Submit(ctx, "status")
	require.NoError(t, err)
	cancel()

	turn, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", turn.Content)
}

func TestConversation_Close(t *testing.T) {
	c := newTestConversation(&fakeResponder{resp: Response{Content: "never"}}, time.Hour)

	pending, err := c.Submit(context.Background(), "status")
	require.NoError(t, err)

	c.Close()

	select {
	case <-pending.Done():
	default:
		t.Fatal("pending answer should be finished after Close")
	}
	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = c.Submit(context.Background(), "more")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, c.Turns(), 2)
}

func TestConversation_AssistantTimestampNotBeforeUser(t *testing.T) {
	start := time.Date(2025, 1, 22, 9, 0, 0, 0, time.UTC)
	calls := 0
	// the clock runs backwards after the user turn
	clock := func() time.Time {
		calls++
		return start.Add(-time.Duration(calls) * time.Minute)
	}

	c := newConversation("", testScope, &fakeResponder{resp: Response{Content: "ok"}}, 0, clock)
	defer c.Close()

	pending, err := c.Submit(context.Background(), "status")
	require.NoError(t, err)
	_, err = pending.Wait(context.Background())
	require.NoError(t, err)

	turns := c.Turns()
	require.Len(t, turns, 3)
	assert.False(t, turns[2].Timestamp.Before(turns[1].Timestamp))
}

func TestConversation_TurnsIsCopy(t *testing.T) {
	c := newTestConversation(&fakeResponder{}, 0)
	defer c.Close()

	turns := c.Turns()
	turns[0].Content = "changed"
	assert.Equal(t, Greeting, c.Turns()[0].Content)
}
