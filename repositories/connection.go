//go:generate go run go.uber.org/mock/mockgen -source=connection.go -destination=../mocks/mock_connection_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	connPrefix = "conn:"
	nickPrefix = "nick:"
)

// ConnectionRepository persists the live-connection registry in
// BadgerDB. Primary rows are keyed "conn:{connectionId}"; a secondary
// index "nick:{nickname}:{connectionId}" serves nickname lookups.
// Nickname uniqueness is cooperative: the index tolerates duplicates
// and lookups take the first match.
type ConnectionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConnectionRepository(db *badger.DB, log *slog.Logger) ConnectionRepository {
	return ConnectionRepository{db: db, log: log}
}

func connKey(connectionID string) []byte {
	return []byte(connPrefix + connectionID)
}

func nickKey(nickname, connectionID string) []byte {
	return []byte(nickPrefix + nickname + ":" + connectionID)
}

// Put inserts or overwrites the row keyed by connectionID. Overwriting
// is idempotent; a stale index row from a previous nickname is dropped
// in the same transaction.
func (r ConnectionRepository) Put(connectionID, nickname string) error {
	row := domain.Connection{
		ConnectionID: connectionID,
		Nickname:     nickname,
		ConnectedAt:  time.Now().UTC(),
	}
	value, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		previous, err := getConnection(txn, connectionID)
		if err != nil {
			return err
		}
		if previous != nil && previous.Nickname != nickname {
			if err := txn.Delete(nickKey(previous.Nickname, connectionID)); err != nil {
				return err
			}
		}
		if err := txn.Set(connKey(connectionID), value); err != nil {
			return err
		}
		return txn.Set(nickKey(nickname, connectionID), []byte(connectionID))
	})
}

// Remove deletes the row and its nickname index entry. Removing an
// absent row is a no-op.
func (r ConnectionRepository) Remove(connectionID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		row, err := getConnection(txn, connectionID)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		if err := txn.Delete(connKey(connectionID)); err != nil {
			return err
		}
		return txn.Delete(nickKey(row.Nickname, connectionID))
	})
}

// GetByConnectionID returns the row for one connection handle, or nil
// when no such row exists.
func (r ConnectionRepository) GetByConnectionID(connectionID string) (*domain.Connection, error) {
	var row *domain.Connection
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getConnection(txn, connectionID)
		row = found
		return err
	})
	return row, err
}

// FindByNickname resolves a nickname to its current connection through
// the secondary index. Under a cooperative-uniqueness violation the
// index holds several entries; the first one wins and the anomaly is
// left alone.
func (r ConnectionRepository) FindByNickname(nickname string) (*domain.Connection, error) {
	var row *domain.Connection
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(nickPrefix + nickname + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		connectionID, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		found, err := getConnection(txn, string(connectionID))
		if err != nil {
			return err
		}
		if found == nil {
			// Index entry without a primary row: a half-removed
			// registration. Report it as absent.
			r.log.Warn("dangling nickname index entry", "nickname", nickname)
			return nil
		}
		row = found
		return nil
	})
	return row, err
}

// ListAll returns every live connection. Badger iterators scan the
// whole prefix, so the result is always a complete snapshot.
func (r ConnectionRepository) ListAll() ([]domain.Connection, error) {
	var rows []domain.Connection
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(connPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var row domain.Connection
			if err := json.Unmarshal(value, &row); err != nil {
				return fmt.Errorf("corrupt registry row %s: %w", it.Item().Key(), err)
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

func getConnection(txn *badger.Txn, connectionID string) (*domain.Connection, error) {
	item, err := txn.Get(connKey(connectionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var row domain.Connection
	if err := json.Unmarshal(value, &row); err != nil {
		return nil, fmt.Errorf("corrupt registry row %s: %w", connKey(connectionID), err)
	}
	return &row, nil
}
