package repositories

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestWriter(t *testing.T) *bluge.Writer {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return writer
}

func storedMessage(key, sender, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:              uuid.New(),
		ConversationKey: key,
		Sender:          sender,
		Body:            body,
		Lang:            "en",
		CreatedAt:       at,
	}
}

func Test_Store_And_Fetch_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	key := domain.ConversationKey("alice", "bob")
	at := time.Now().UTC()
	messages := []domain.Message{
		storedMessage(key, "alice", "first", at),
		storedMessage(key, "bob", "second", at.Add(1*time.Minute)),
		storedMessage(key, "alice", "third", at.Add(2*time.Minute)),
	}
	for _, m := range messages {
		req.NoError(repository.Store(m))
	}

	fetched, _, err := repository.History(key, 10, nil)
	req.NoError(err)
	req.Len(fetched, len(messages))

	// Reverse prefix scan: newest entry comes back first.
	req.Equal(messages[2], fetched[0])
	req.Equal(messages[1], fetched[1])
	req.Equal(messages[0], fetched[2])
}

func Test_History_Respects_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	key := domain.ConversationKey("alice", "bob")
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		req.NoError(repository.Store(storedMessage(key, "alice", "ping", at.Add(time.Duration(i)*time.Second))))
	}

	fetched, _, err := repository.History(key, 2, nil)
	req.NoError(err)
	req.Len(fetched, 2)
}

func Test_History_Pagination(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	key := domain.ConversationKey("alice", "bob")
	at := time.Now().UTC()
	total := 10
	for i := 0; i < total; i++ {
		req.NoError(repository.Store(storedMessage(key, "alice", "ping", at.Add(time.Duration(i)*time.Second))))
	}

	limit := 4
	var seen []domain.Message

	// First page anchors at the newest entry.
	page, cursor, err := repository.History(key, limit, nil)
	req.NoError(err)
	req.Len(page, limit)
	seen = append(seen, page...)

	// Second page resumes strictly after the cursor.
	page, cursor, err = repository.History(key, limit, cursor)
	req.NoError(err)
	req.Len(page, limit)
	seen = append(seen, page...)

	// Last page carries the remainder.
	page, cursor, err = repository.History(key, limit, cursor)
	req.NoError(err)
	req.Len(page, total-2*limit)
	seen = append(seen, page...)

	// Then an exhausted cursor yields an empty page.
	page, _, err = repository.History(key, limit, cursor)
	req.NoError(err)
	req.Empty(page)

	// No entry was skipped or repeated across pages.
	req.Len(seen, total)
	ids := make(map[uuid.UUID]struct{}, total)
	for i, m := range seen {
		ids[m.ID] = struct{}{}
		if i > 0 {
			req.True(seen[i-1].CreatedAt.After(m.CreatedAt), "pages stay newest first across boundaries")
		}
	}
	req.Len(ids, total)
}

func Test_History_Is_Partitioned_By_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	at := time.Now().UTC()
	aliceBob := domain.ConversationKey("alice", "bob")
	aliceClara := domain.ConversationKey("alice", "clara")
	req.NoError(repository.Store(storedMessage(aliceBob, "alice", "for bob", at)))
	req.NoError(repository.Store(storedMessage(aliceClara, "alice", "for clara", at)))

	fetched, _, err := repository.History(aliceBob, 10, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("for bob", fetched[0].Body)
}

func Test_Search_Matches_Body_Within_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	at := time.Now().UTC()
	aliceBob := domain.ConversationKey("alice", "bob")
	aliceClara := domain.ConversationKey("alice", "clara")
	wanted := storedMessage(aliceBob, "alice", "the deployment failed again", at)
	req.NoError(repository.Store(wanted))
	req.NoError(repository.Store(storedMessage(aliceBob, "bob", "lunch tomorrow?", at.Add(time.Second))))
	req.NoError(repository.Store(storedMessage(aliceClara, "alice", "deployment went fine", at.Add(2*time.Second))))

	matches, err := repository.Search(context.Background(), aliceBob, "deployment", 10)
	req.NoError(err)
	req.Len(matches, 1, "the other conversation must not leak into the results")
	req.Equal(wanted.ID, matches[0].ID)
	req.Equal(wanted.Sender, matches[0].Sender)
	req.Equal(wanted.Body, matches[0].Body)
	req.Equal(wanted.Lang, matches[0].Lang)
	req.True(wanted.CreatedAt.Equal(matches[0].CreatedAt))
}

func Test_Search_No_Match_Returns_Empty(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), openTestWriter(t), slog.Default())

	key := domain.ConversationKey("alice", "bob")
	req.NoError(repository.Store(storedMessage(key, "alice", "hello there", time.Now().UTC())))

	matches, err := repository.Search(context.Background(), key, "submarine", 10)
	req.NoError(err)
	req.Empty(matches)
}
