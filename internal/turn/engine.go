package turn

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/chat"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrClosed           = errors.New("turn engine closed")
	ErrConversationGone = errors.New("conversation no longer exists")
)

// FallbackReply is appended when the responder fails.
const FallbackReply = "Sorry, I couldn't produce an answer just now. Please try again."

// Config bounds the simulated think time.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultConfig waits between one and two seconds.
var DefaultConfig = Config{MinDelay: time.Second, MaxDelay: 2 * time.Second}

// Ticket tracks one scheduled reply.
type Ticket struct {
	ConversationID string
	Index          int
	Delay          time.Duration

	done  chan struct{}
	once  sync.Once
	reply chat.Message
	err   error
}

func newTicket(id string, index int, delay time.Duration) *Ticket {
	return &Ticket{ConversationID: id, Index: index, Delay: delay, done: make(chan struct{})}
}

// Done is closed once the reply has been appended, dropped or cancelled.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result is valid after Done is closed.
func (t *Ticket) Result() (chat.Message, error) {
	<-t.done
	return t.reply, t.err
}

// Wait blocks for the reply or ctx.
func (t *Ticket) Wait(ctx context.Context) (chat.Message, error) {
	select {
	case <-t.done:
		return t.reply, t.err
	case <-ctx.Done():
		return chat.Message{}, ctx.Err()
	}
}

func (t *Ticket) finish(reply chat.Message, err error) {
	t.once.Do(func() {
		t.reply = reply
		t.err = err
		close(t.done)
	})
}

// Engine turns user submissions into delayed assistant replies. Each reply is
// bound to the conversation that was active when the message was submitted,
// whatever the user looks at by the time it lands.
type Engine struct {
	store     *chat.Store
	responder Responder
	sched     Scheduler
	cfg       Config
	logger    *log.Logger

	submitMu sync.Mutex

	mu      sync.Mutex
	pending map[string]int
	cycle   map[string]int
	timers  map[*Ticket]Timer
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine wires an engine to store. A nil responder uses the fixture
// replies and a nil scheduler uses real timers.
func NewEngine(store *chat.Store, responder Responder, sched Scheduler, cfg Config, logger *log.Logger) *Engine {
	if responder == nil {
		responder = FixtureResponder{}
	}
	if sched == nil {
		sched = WallClock{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:     store,
		responder: responder,
		sched:     sched,
		cfg:       cfg,
		logger:    logger,
		pending:   make(map[string]int),
		cycle:     make(map[string]int),
		timers:    make(map[*Ticket]Timer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit records the user's message and schedules the reply. The target
// conversation is resolved before Submit returns: a new one when none is
// active, the active one otherwise.
func (e *Engine) Submit(ctx context.Context, text string) (*Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	id, created := e.resolve(chat.UserMessage(text))

	e.mu.Lock()
	_, known := e.cycle[id]
	e.mu.Unlock()
	seed := 0
	if !created && !known {
		seed = e.deliveredReplies(id)
	}

	delay := e.delay()
	e.mu.Lock()
	if created || !known {
		e.cycle[id] = seed
	}
	index := e.cycle[id]
	e.cycle[id]++
	e.pending[id]++
	t := newTicket(id, index, delay)
	e.timers[t] = e.sched.AfterFunc(delay, func() { e.complete(t, id, index) })
	e.mu.Unlock()

	e.logger.Printf("reply %d for conversation %s due in %s", index, id, delay)
	return t, nil
}

func (e *Engine) resolve(msg chat.Message) (id string, created bool) {
	if active, mode := e.store.Active(); mode == chat.ModeConversation && active != "" {
		if _, ok := e.store.AppendMessage(active, msg); ok {
			return active, false
		}
	}
	return e.store.CreateConversation(msg), true
}

// deliveredReplies counts assistant messages already in a conversation this
// engine has not replied to yet, such as one restored from the archive.
func (e *Engine) deliveredReplies(id string) int {
	conv, ok := e.store.Get(id)
	if !ok {
		return 0
	}
	n := 0
	for _, m := range conv.Messages {
		if m.Role == chat.RoleAssistant {
			n++
		}
	}
	return n
}

func (e *Engine) delay() time.Duration {
	span := e.cfg.MaxDelay - e.cfg.MinDelay
	if span <= 0 {
		return e.cfg.MinDelay
	}
	return e.cfg.MinDelay + time.Duration(rand.Int64N(int64(span)+1))
}

// complete runs on the scheduler's goroutine with the id captured at submit.
func (e *Engine) complete(t *Ticket, id string, index int) {
	e.mu.Lock()
	if _, live := e.timers[t]; !live {
		e.mu.Unlock()
		return
	}
	delete(e.timers, t)
	e.mu.Unlock()

	var history []chat.Message
	if conv, ok := e.store.Get(id); ok {
		history = conv.Messages
	}
	text, rerr := e.responder.Reply(e.ctx, Request{ConversationID: id, Index: index, History: history})
	if rerr != nil {
		e.logger.Printf("responder failed for conversation %s: %v", id, rerr)
		text = FallbackReply
	}

	// Cleared before the append so its change notification redraws without
	// the indicator.
	e.mu.Lock()
	if e.pending[id] <= 1 {
		delete(e.pending, id)
	} else {
		e.pending[id]--
	}
	e.mu.Unlock()

	conv, ok := e.store.AppendMessage(id, chat.AssistantMessage(text))
	if !ok {
		e.logger.Printf("reply %d dropped: conversation %s is gone", index, id)
		t.finish(chat.Message{}, ErrConversationGone)
		return
	}
	last, _ := conv.Last()
	t.finish(last, rerr)
}

// Thinking reports whether viewedID has a reply in flight. It is false for
// any conversation other than the one being viewed.
func (e *Engine) Thinking(viewedID string) bool {
	if viewedID == "" {
		return false
	}
	return e.Pending(viewedID) > 0
}

// Pending is the number of outstanding replies for id.
func (e *Engine) Pending(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending[id]
}

// Close cancels every outstanding reply. Switching conversations never does
// this; it is for shutdown only.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	timers := e.timers
	e.timers = make(map[*Ticket]Timer)
	e.pending = make(map[string]int)
	e.mu.Unlock()

	e.cancel()
	for t, timer := range timers {
		timer.Stop()
		t.finish(chat.Message{}, ErrClosed)
	}
}
