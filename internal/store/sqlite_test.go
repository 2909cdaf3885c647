package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/casedesk/internal/chat"
	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 8, "Expected tables to be created")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "data", "casedesk.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs the migrations again against existing tables.
	s, err = NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, dbPath)
}

func TestCaseRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	last := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	c := review.Case{
		ID:             "c1",
		ClientName:     "John Doe",
		CaseNumber:     "CV-2024-001",
		PracticeArea:   "Employment",
		Status:         review.StatusNeedsReview,
		Priority:       review.PriorityHigh,
		Progress:       40,
		DocumentCount:  7,
		AssignedTo:     "A. Patel",
		Description:    "Wrongful termination claim",
		LastActivityAt: last,
	}
	require.NoError(t, s.SaveCase(ctx, c))

	got, err := s.GetCase(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.ClientName, got.ClientName)
	assert.Equal(t, c.PracticeArea, got.PracticeArea)
	assert.Equal(t, review.PriorityHigh, got.Priority)
	assert.Equal(t, 7, got.DocumentCount)
	assert.True(t, last.Equal(got.LastActivityAt))

	// Upsert keeps a single row.
	c.Progress = 60
	c.AssignedTo = ""
	require.NoError(t, s.SaveCase(ctx, c))
	all, err := s.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 60, all[0].Progress)
	assert.Empty(t, all[0].AssignedTo)
}

func TestSaveCaseRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveCase(context.Background(), review.Case{ClientName: "x"}))
}

func TestGetCaseNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCase(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateCaseStatus(context.Background(), "missing", review.StatusComplete, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCaseStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCase(ctx, review.Case{
		ID: "c1", ClientName: "Jane Smith", CaseNumber: "CV-2024-002",
		Status: review.StatusAwaitingDocuments, Progress: 30,
	}))

	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	updated, err := s.UpdateCaseStatus(ctx, "c1", review.StatusComplete, at)
	require.NoError(t, err)
	assert.Equal(t, review.StatusComplete, updated.Status)
	assert.Equal(t, 100, updated.Progress)

	got, err := s.GetCase(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, review.StatusComplete, got.Status)
	assert.True(t, at.Equal(got.LastActivityAt))
}

func TestListCasesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.SaveCase(ctx, review.Case{ID: id, ClientName: id, CaseNumber: id, Status: review.StatusNeedsReview}))
	}
	cases, err := s.ListCases(ctx)
	require.NoError(t, err)
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func sampleThread() comms.Thread {
	queued := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	return comms.Thread{
		ID:             "t1",
		ClientName:     "Maria Garcia",
		CaseNumber:     "FL-2025-014",
		Subject:        "Custody hearing date",
		Status:         comms.StatusUnread,
		ActionRequired: true,
		QueuedSince:    queued,
		LastActivityAt: queued,
		Messages: []comms.Message{
			{ID: "m1", From: "Maria Garcia", Body: "When is the hearing?", Channel: comms.ChannelEmail, Inbound: true, SentAt: queued},
			{ID: "m2", From: "Maria Garcia", Body: "Also need the forms.", Channel: comms.ChannelSMS, Inbound: true, SentAt: queued.Add(time.Hour)},
		},
	}
}

func TestThreadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveThread(ctx, sampleThread()))

	got, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Custody hearing date", got.Subject)
	assert.True(t, got.ActionRequired)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m1", got.Messages[0].ID)
	assert.Equal(t, comms.ChannelSMS, got.Messages[1].Channel)
	assert.True(t, got.Messages[1].Inbound)

	// Saving again replaces the message list instead of duplicating it.
	th := sampleThread()
	th.Messages = th.Messages[:1]
	require.NoError(t, s.SaveThread(ctx, th))
	threads, err := s.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Messages, 1)
}

func TestGetThreadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetThread(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ReplyToThread(context.Background(), "nope", comms.Message{Body: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplyToThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveThread(ctx, sampleThread()))

	sent := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	updated, err := s.ReplyToThread(ctx, "t1", comms.Message{
		From: "Firm", Body: "The hearing is on the 14th.", Channel: comms.ChannelEmail, Inbound: true, SentAt: sent,
	})
	require.NoError(t, err)
	assert.Equal(t, comms.StatusResponded, updated.Status)
	assert.False(t, updated.ActionRequired)
	assert.True(t, updated.QueuedSince.IsZero())

	got, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	reply := got.Messages[2]
	assert.NotEmpty(t, reply.ID)
	assert.False(t, reply.Inbound, "replies are always outbound")
	assert.Equal(t, comms.StatusResponded, got.Status)
	assert.True(t, sent.Equal(got.LastActivityAt))
	assert.Zero(t, got.QueueAge(sent.Add(48*time.Hour)))
}

func TestConversationArchive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cs := chat.NewStore(nil)
	cancel := cs.Subscribe(s.Archive)
	defer cancel()

	id := cs.CreateConversation(chat.UserMessage("What is the statute of limitations for breach of contract?"))
	_, ok := cs.AppendMessage(id, chat.AssistantMessage("It depends on the jurisdiction."))
	require.True(t, ok)
	other := cs.CreateConversation(chat.UserMessage("Draft an engagement letter"))

	convs, err := s.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	byID := map[string]chat.Conversation{}
	for _, c := range convs {
		byID[c.ID] = c
	}
	first := byID[id]
	require.Len(t, first.Messages, 2)
	assert.Equal(t, chat.RoleUser, first.Messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, first.Messages[1].Role)
	assert.Equal(t, chat.Summarize(first.Messages), first.Summary)

	entries, err := s.GetAuditEntries(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "conversation_created", entries[0].Action)

	require.True(t, cs.Remove(other))
	convs, err = s.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, id, convs[0].ID)

	// Archived transcripts restore into a fresh chat store.
	fresh := chat.NewStore(nil)
	assert.Equal(t, 1, fresh.Restore(convs...))
	restored, ok := fresh.Get(id)
	require.True(t, ok)
	assert.Len(t, restored.Messages, 2)
}

func TestConversationArchiveKeepsOrderWhenNotifiedLate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Hold back the assistant reply's change until the next user message has
	// been archived, the way two goroutines can race after the store unlocks.
	var held []chat.Change
	cs := chat.NewStore(nil)
	cancel := cs.Subscribe(func(ch chat.Change) {
		if ch.Kind == chat.ChangeAppended && ch.Message.Role == chat.RoleAssistant {
			held = append(held, ch)
			return
		}
		s.Archive(ch)
	})
	defer cancel()

	id := cs.CreateConversation(chat.Message{ID: "q1", Role: chat.RoleUser, Content: "first question"})
	_, ok := cs.AppendMessage(id, chat.Message{ID: "reply-1", Role: chat.RoleAssistant, Content: "first answer"})
	require.True(t, ok)
	_, ok = cs.AppendMessage(id, chat.Message{ID: "q2", Role: chat.RoleUser, Content: "second question"})
	require.True(t, ok)
	require.Len(t, held, 1)
	s.Archive(held[0])

	live, ok := cs.Get(id)
	require.True(t, ok)
	convs, err := s.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	ids := func(msgs []chat.Message) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.ID
		}
		return out
	}
	assert.Equal(t, []string{"q1", "reply-1", "q2"}, ids(live.Messages))
	assert.Equal(t, ids(live.Messages), ids(convs[0].Messages))
}

func TestConversationTimestampsKeepSubSecondPrecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 10, 12, 0, 0, 250*int(time.Millisecond), time.UTC)
	updated := created.Add(300 * time.Millisecond)

	require.NoError(t, s.SaveConversation(ctx, chat.Conversation{ID: "c1", Summary: "Test", CreatedAt: created, UpdatedAt: updated}))
	require.NoError(t, s.SaveChatMessage(ctx, "c1", 0, chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi", Timestamp: updated}))
	// Same second, later instant.
	require.NoError(t, s.SaveConversation(ctx, chat.Conversation{ID: "c2", Summary: "Other", CreatedAt: created, UpdatedAt: created.Add(500 * time.Millisecond)}))

	convs, err := s.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "c2", convs[0].ID)
	c1 := convs[1]
	assert.True(t, created.Equal(c1.CreatedAt), "created_at %s", c1.CreatedAt)
	assert.True(t, updated.Equal(c1.UpdatedAt), "updated_at %s", c1.UpdatedAt)
	require.Len(t, c1.Messages, 1)
	assert.True(t, updated.Equal(c1.Messages[0].Timestamp))
}

func TestSaveChatMessageIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.SaveConversation(ctx, chat.Conversation{ID: "c1", Summary: "Test", CreatedAt: now, UpdatedAt: now}))

	msg := chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hello", Timestamp: now}
	require.NoError(t, s.SaveChatMessage(ctx, "c1", 0, msg))
	require.NoError(t, s.SaveChatMessage(ctx, "c1", 0, msg))

	convs, err := s.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Messages, 1)
}

func TestFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveFeedback(ctx, Feedback{Sentiment: "happy", Comment: "Great board", CreatedAt: time.Unix(100, 0)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	_, err = s.SaveFeedback(ctx, Feedback{Sentiment: "unhappy", Comment: "Slow", Page: "comms", CreatedAt: time.Unix(200, 0)})
	require.NoError(t, err)

	list, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "unhappy", list[0].Sentiment)
	assert.Equal(t, "comms", list[0].Page)
	assert.Empty(t, list[1].Page)

	limited, err := s.ListFeedback(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestResetAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCase(ctx, review.Case{ID: "c1", ClientName: "A", CaseNumber: "1", Status: review.StatusNeedsReview}))
	require.NoError(t, s.SaveThread(ctx, sampleThread()))
	_, err := s.SaveFeedback(ctx, Feedback{Sentiment: "happy", Comment: "ok"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["cases"])
	assert.Equal(t, 1, stats["threads"])
	assert.Equal(t, 2, stats["thread_messages"])
	assert.Equal(t, 1, stats["feedback"])
	assert.Equal(t, 1, stats["audit_entries"])

	require.NoError(t, s.Reset(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	for table, n := range stats {
		assert.Zero(t, n, table)
	}
}
