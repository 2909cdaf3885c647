package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/casedesk/internal/chat"
)

type manualTimer struct {
	s       *manualScheduler
	f       func()
	delay   time.Duration
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler holds callbacks until the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, f: f, delay: d}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Fire(t *testing.T, i int) {
	t.Helper()
	s.mu.Lock()
	require.Less(t, i, len(s.timers))
	tm := s.timers[i]
	run := !tm.stopped && !tm.fired
	tm.fired = true
	s.mu.Unlock()
	if run {
		tm.f()
	}
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func newTestEngine(replies ...string) (*Engine, *chat.Store, *manualScheduler) {
	store := chat.NewStore(nil)
	sched := &manualScheduler{}
	if len(replies) == 0 {
		replies = []string{"r0", "r1", "r2"}
	}
	e := NewEngine(store, FixtureResponder{Replies: replies}, sched, Config{MinDelay: time.Second, MaxDelay: 2 * time.Second}, nil)
	return e, store, sched
}

func contents(c chat.Conversation) []string {
	out := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = m.Content
	}
	return out
}

func TestSubmitCreatesConversationWhenNoneActive(t *testing.T) {
	e, store, sched := newTestEngine()
	ticket, err := e.Submit(context.Background(), "Draft a demand letter")
	require.NoError(t, err)

	active, mode := store.Active()
	assert.Equal(t, ticket.ConversationID, active)
	assert.Equal(t, chat.ModeConversation, mode)

	conv, _ := store.Get(active)
	assert.Equal(t, []string{"Draft a demand letter"}, contents(conv))
	assert.True(t, e.Thinking(active))
	assert.Equal(t, 1, sched.Len())
}

func TestDelayWithinBounds(t *testing.T) {
	e, _, _ := newTestEngine()
	for i := 0; i < 50; i++ {
		tk, err := e.Submit(context.Background(), "q")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tk.Delay, time.Second)
		assert.LessOrEqual(t, tk.Delay, 2*time.Second)
	}
}

func TestReplyLandsInCapturedConversation(t *testing.T) {
	e, store, sched := newTestEngine()
	ctx := context.Background()

	ta, err := e.Submit(ctx, "Question for A")
	require.NoError(t, err)
	a := ta.ConversationID

	store.StartBlank()
	tb, err := e.Submit(ctx, "Question for B")
	require.NoError(t, err)
	b := tb.ConversationID
	require.NotEqual(t, a, b)

	active, _ := store.Active()
	assert.Equal(t, b, active)
	assert.False(t, e.Thinking(""))

	sched.Fire(t, 0)
	<-ta.Done()

	convA, _ := store.Get(a)
	convB, _ := store.Get(b)
	assert.Equal(t, []string{"Question for A", "r0"}, contents(convA))
	assert.Equal(t, []string{"Question for B"}, contents(convB))
	assert.False(t, e.Thinking(a))
	assert.True(t, e.Thinking(b))

	reply, err := ta.Result()
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, reply.Role)
	assert.Equal(t, "r0", reply.Content)
}

func TestRepliesMayCompleteOutOfOrder(t *testing.T) {
	e, store, sched := newTestEngine()
	ctx := context.Background()

	ta, _ := e.Submit(ctx, "A1")
	store.StartBlank()
	tb, _ := e.Submit(ctx, "B1")
	require.True(t, store.SwitchActive(ta.ConversationID))
	ta2, _ := e.Submit(ctx, "A2")
	assert.Equal(t, ta.ConversationID, ta2.ConversationID)
	assert.Equal(t, 2, e.Pending(ta.ConversationID))

	sched.Fire(t, 1)
	sched.Fire(t, 2)
	sched.Fire(t, 0)

	convA, _ := store.Get(ta.ConversationID)
	convB, _ := store.Get(tb.ConversationID)
	assert.Equal(t, []string{"A1", "A2", "r1", "r0"}, contents(convA))
	assert.Equal(t, []string{"B1", "r0"}, contents(convB))
	assert.Zero(t, e.Pending(ta.ConversationID))
}

func TestCycleIsPerConversation(t *testing.T) {
	e, store, sched := newTestEngine("one", "two")
	ctx := context.Background()

	t1, _ := e.Submit(ctx, "q1")
	t2, _ := e.Submit(ctx, "q2")
	t3, _ := e.Submit(ctx, "q3")
	assert.Equal(t, []int{0, 1, 2}, []int{t1.Index, t2.Index, t3.Index})

	store.StartBlank()
	t4, _ := e.Submit(ctx, "fresh")
	assert.Equal(t, 0, t4.Index)

	for i := 0; i < sched.Len(); i++ {
		sched.Fire(t, i)
	}
	conv, _ := store.Get(t1.ConversationID)
	assert.Equal(t, []string{"q1", "q2", "q3", "one", "two", "one"}, contents(conv))
	fresh, _ := store.Get(t4.ConversationID)
	assert.Equal(t, []string{"fresh", "one"}, contents(fresh))
}

func TestCycleContinuesForRestoredConversation(t *testing.T) {
	e, store, sched := newTestEngine("one", "two", "three")
	store.Restore(chat.Conversation{
		ID: "archived",
		Messages: []chat.Message{
			{ID: "m1", Role: chat.RoleUser, Content: "q1"},
			{ID: "m2", Role: chat.RoleAssistant, Content: "one"},
			{ID: "m3", Role: chat.RoleUser, Content: "q2"},
			{ID: "m4", Role: chat.RoleAssistant, Content: "two"},
		},
	})
	require.True(t, store.SwitchActive("archived"))

	tk, err := e.Submit(context.Background(), "q3")
	require.NoError(t, err)
	assert.Equal(t, 2, tk.Index)
	next, _ := e.Submit(context.Background(), "q4")
	assert.Equal(t, 3, next.Index)

	sched.Fire(t, 0)
	conv, _ := store.Get("archived")
	assert.Equal(t, "three", conv.Messages[len(conv.Messages)-1].Content)
}

func TestReplyToRemovedConversationIsDropped(t *testing.T) {
	e, store, sched := newTestEngine()
	tk, _ := e.Submit(context.Background(), "hello")
	require.True(t, store.Remove(tk.ConversationID))

	sched.Fire(t, 0)
	_, err := tk.Result()
	assert.ErrorIs(t, err, ErrConversationGone)
	assert.Zero(t, store.Len())
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	e, store, _ := newTestEngine()
	_, err := e.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, store.Len())
}

func TestCloseCancelsPending(t *testing.T) {
	e, store, sched := newTestEngine()
	tk, _ := e.Submit(context.Background(), "hello")
	e.Close()

	_, err := tk.Result()
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, e.Thinking(tk.ConversationID))

	sched.Fire(t, 0)
	conv, _ := store.Get(tk.ConversationID)
	assert.Len(t, conv.Messages, 1)

	_, err = e.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrClosed)
}

type failingResponder struct{}

func (failingResponder) Reply(context.Context, Request) (string, error) {
	return "", errors.New("provider offline")
}

func TestResponderFailureAppendsFallback(t *testing.T) {
	store := chat.NewStore(nil)
	sched := &manualScheduler{}
	e := NewEngine(store, failingResponder{}, sched, Config{}, nil)

	tk, err := e.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Zero(t, tk.Delay)
	sched.Fire(t, 0)

	reply, err := tk.Result()
	assert.Error(t, err)
	assert.Equal(t, FallbackReply, reply.Content)
}

func TestWallClockDeliversReply(t *testing.T) {
	store := chat.NewStore(nil)
	e := NewEngine(store, nil, nil, Config{MinDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, nil)
	defer e.Close()

	tk, err := e.Submit(context.Background(), "ping")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := tk.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultReplies[0], reply.Content)
}
