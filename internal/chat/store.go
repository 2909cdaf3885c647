package chat

import (
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns every conversation of a session plus the active pointer. All
// methods are safe for concurrent use; subscribers run outside the lock.
type Store struct {
	mu       sync.Mutex
	convs    map[string]*Conversation
	activeID string
	mode     Mode
	subs     map[int]func(Change)
	nextSub  int

	now    func() time.Time
	newID  func() string
	logger *log.Logger
}

// NewStore creates an empty store in browsing mode.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		convs:  make(map[string]*Conversation),
		subs:   make(map[int]func(Change)),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Subscribe registers fn for every subsequent change. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// subscribers must be called with mu held.
func (s *Store) subscribers() []func(Change) {
	keys := make([]int, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]func(Change), 0, len(keys))
	for _, k := range keys {
		out = append(out, s.subs[k])
	}
	return out
}

func notify(subs []func(Change), ch Change) {
	for _, fn := range subs {
		fn(ch)
	}
}

// stamp must be called with mu held.
func (s *Store) stamp(msg Message) Message {
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	return msg
}

// CreateConversation starts a conversation seeded with first, makes it active
// and returns its id.
func (s *Store) CreateConversation(first Message) string {
	s.mu.Lock()
	id := s.newID()
	for s.convs[id] != nil {
		id = s.newID()
	}
	first = s.stamp(first)
	conv := &Conversation{
		ID:        id,
		Messages:  []Message{first},
		CreatedAt: first.Timestamp,
		UpdatedAt: first.Timestamp,
	}
	conv.Summary = Summarize(conv.Messages)
	s.convs[id] = conv
	s.activeID = id
	s.mode = ModeConversation
	ch := Change{Kind: ChangeCreated, Conversation: conv.clone(), Message: first, ActiveID: id, Mode: s.mode}
	subs := s.subscribers()
	s.mu.Unlock()

	s.logger.Printf("created conversation %s (%q)", id, conv.Summary)
	notify(subs, ch)
	return id
}

// AppendMessage adds msg to the conversation with id and returns its new
// state. Unknown ids are a silent no-op reporting false.
func (s *Store) AppendMessage(id string, msg Message) (Conversation, bool) {
	s.mu.Lock()
	conv, ok := s.convs[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Printf("dropped %s message for unknown conversation %s", msg.Role, id)
		return Conversation{}, false
	}
	msg = s.stamp(msg)
	conv.Messages = append(conv.Messages, msg)
	if msg.Timestamp.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.Timestamp
	} else {
		conv.UpdatedAt = s.now()
	}
	conv.Summary = Summarize(conv.Messages)
	out := conv.clone()
	ch := Change{Kind: ChangeAppended, Conversation: out, Message: msg, Position: len(out.Messages) - 1, ActiveID: s.activeID, Mode: s.mode}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
	return out.clone(), true
}

// Restore loads previously archived conversations without touching the
// active pointer. Existing ids are left alone.
func (s *Store) Restore(convs ...Conversation) int {
	s.mu.Lock()
	n := 0
	for _, c := range convs {
		if c.ID == "" || s.convs[c.ID] != nil || len(c.Messages) == 0 {
			continue
		}
		c = c.clone()
		if c.Summary == "" {
			c.Summary = Summarize(c.Messages)
		}
		s.convs[c.ID] = &c
		n++
	}
	s.mu.Unlock()
	return n
}

// Get returns a copy of the conversation with id.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return Conversation{}, false
	}
	return conv.clone(), true
}

// List returns every conversation, most recently updated first.
func (s *Store) List() []Conversation {
	s.mu.Lock()
	out := make([]Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c.clone())
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Search returns conversations whose summary or messages contain query.
func (s *Store) Search(query string) []Conversation {
	needle := strings.ToLower(strings.TrimSpace(query))
	all := s.List()
	if needle == "" {
		return all
	}
	out := all[:0]
	for _, c := range all {
		if conversationMatches(c, needle) {
			out = append(out, c)
		}
	}
	return out
}

func conversationMatches(c Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(c.Summary), needle) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			return true
		}
	}
	return false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Active returns the active conversation id (empty unless in
// ModeConversation) and the current mode.
func (s *Store) Active() (string, Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.mode
}

// SwitchActive points the screen at an existing conversation.
func (s *Store) SwitchActive(id string) bool {
	s.mu.Lock()
	conv, ok := s.convs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.activeID = id
	s.mode = ModeConversation
	ch := Change{Kind: ChangeActive, Conversation: conv.clone(), ActiveID: id, Mode: s.mode}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
	return true
}

// StartBlank clears the active pointer so the next submission starts a new
// conversation.
func (s *Store) StartBlank() {
	s.movePointer(ModeBlank)
}

// ExitToBrowsing returns to the conversation list.
func (s *Store) ExitToBrowsing() {
	s.movePointer(ModeBrowsing)
}

func (s *Store) movePointer(mode Mode) {
	s.mu.Lock()
	s.activeID = ""
	s.mode = mode
	ch := Change{Kind: ChangeActive, Mode: mode}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
}

// Remove deletes a conversation. Removing the active one falls back to
// browsing; later appends to id are dropped.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	conv, ok := s.convs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.convs, id)
	if s.activeID == id {
		s.activeID = ""
		s.mode = ModeBrowsing
	}
	ch := Change{Kind: ChangeRemoved, Conversation: conv.clone(), ActiveID: s.activeID, Mode: s.mode}
	subs := s.subscribers()
	s.mu.Unlock()

	s.logger.Printf("removed conversation %s", id)
	notify(subs, ch)
	return true
}
