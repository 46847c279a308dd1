//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const msgPrefix = "msg:"

// maxPaddedTimestamp is past every real key suffix, used as the seek
// anchor when no cursor is supplied.
const maxPaddedTimestamp = "9999999999999999999"

// MessageRepository persists messages in BadgerDB and mirrors them into
// a Bluge index for full-text search.
//
// The badger key is "msg:{conversationKey}:{timestamp_padded}:{uuid}" to:
//  1. Partition the log per unordered nickname pair.
//  2. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  3. Prevent data loss by using the message id as a collision
//     disconnector if two messages arrive at the same nanosecond.
type MessageRepository struct {
	db     *badger.DB
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageRepository(db *badger.DB, writer *bluge.Writer, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, writer: writer, log: log}
}

func messageKey(m domain.Message) string {
	return fmt.Sprintf("%s%s:%019d:%s", msgPrefix, m.ConversationKey, m.CreatedAt.UnixNano(), m.ID)
}

// Store appends one message. The durable badger write happens first;
// the search index is secondary and an indexing failure is logged, not
// returned, because the message is already safe on disk.
func (r MessageRepository) Store(message domain.Message) error {
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messageKey(message)), value)
	})
	if err != nil {
		return err
	}

	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("conversation", message.ConversationKey)).
		AddField(bluge.NewKeywordField("sender", message.Sender).StoreValue()).
		AddField(bluge.NewTextField("body", message.Body).StoreValue()).
		AddField(bluge.NewKeywordField("lang", message.Lang).StoreValue()).
		AddField(bluge.NewStoredOnlyField("created", []byte(strconv.FormatInt(message.CreatedAt.UnixNano(), 10))))
	if err := r.writer.Update(doc.ID(), doc); err != nil {
		r.log.Error("search indexing failed", "message_id", message.ID, "error", err)
	}
	return nil
}

// History retrieves one conversation page using a reverse prefix scan,
// newest first. Thanks to the padded timestamp in the key, messages are
// naturally sorted by time. The returned cursor is the key suffix of
// the last visited entry; callers treat it as opaque.
func (r MessageRepository) History(conversationKey string, limit int, cursor *string) ([]domain.Message, *string, error) {
	var values [][]byte
	var lastKey string

	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := msgPrefix + conversationKey + ":"
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Land past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte(maxPaddedTimestamp)...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		// A cursor points at the last entry of the previous page.
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(values) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(values))
	for _, value := range values {
		var message domain.Message
		if err := json.Unmarshal(value, &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}

// Search runs a full-text query over one conversation partition.
// Results come back in relevance order, rebuilt from stored fields so
// no second badger lookup is needed.
func (r MessageRepository) Search(ctx context.Context, conversationKey, query string, limit int) ([]domain.Message, error) {
	reader, err := r.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationKey).SetField("conversation")).
		AddMust(bluge.NewMatchQuery(query).SetField("body"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	match, err := iterator.Next()
	for err == nil && match != nil {
		message := domain.Message{ConversationKey: conversationKey}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					message.ID = id
				}
			case "sender":
				message.Sender = string(value)
			case "body":
				message.Body = string(value)
			case "lang":
				message.Lang = string(value)
			case "created":
				if nanos, parseErr := strconv.ParseInt(string(value), 10, 64); parseErr == nil {
					message.CreatedAt = time.Unix(0, nanos).UTC()
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		messages = append(messages, message)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}
