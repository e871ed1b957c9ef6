package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/numisapp/numis-server/internal/domain"
)

// Document store errors.
var (
	// ErrDocNotFound is returned when the sync document has never been
	// written (or was deleted by a force refresh).
	ErrDocNotFound = errors.New("sync document not found")
	// ErrRevConflict is returned by PutSyncDocument when the caller's
	// revision is stale. The caller must re-fetch and retry.
	ErrRevConflict = errors.New("sync document revision conflict")
)

// GetSyncDocument retrieves the current sync document.
func (s *Store) GetSyncDocument(ctx context.Context) (*domain.SyncDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc domain.SyncDocument
	key := []byte(docPrefix + domain.SyncDocumentID)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDocNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// PutSyncDocument stores doc with optimistic revision matching: doc.Rev
// must equal the stored revision (or be empty when no document exists).
// On success the document is stored under a fresh revision, which is also
// written back into doc.Rev and returned.
func (s *Store) PutSyncDocument(ctx context.Context, doc *domain.SyncDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := []byte(docPrefix + domain.SyncDocumentID)
	var newRev string

	err := s.db.Update(func(txn *badger.Txn) error {
		generation := 1

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if doc.Rev != "" {
				return ErrRevConflict
			}
		case err != nil:
			return err
		default:
			var current domain.SyncDocument
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}
			if doc.Rev != current.Rev {
				return ErrRevConflict
			}
			generation = revGeneration(current.Rev) + 1
		}

		stored := *doc
		stored.ID = domain.SyncDocumentID
		stored.Rev = fmt.Sprintf("%d-%s", generation, uuid.NewString())

		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		newRev = stored.Rev
		return nil
	})
	if err != nil {
		return "", err
	}

	doc.Rev = newRev
	return newRev, nil
}

// ReplaceSyncDocument stores doc unconditionally, preserving whatever
// revision it carries. Used when applying a pulled remote document: the
// remote revision becomes the local revision so a subsequent push can
// compare the two stores.
func (s *Store) ReplaceSyncDocument(ctx context.Context, doc *domain.SyncDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *doc
	stored.ID = domain.SyncDocumentID

	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(docPrefix+domain.SyncDocumentID), data)
	})
}

// DeleteSyncDocument removes the sync document. Deleting an absent
// document is not an error (idempotent).
func (s *Store) DeleteSyncDocument(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(docPrefix + domain.SyncDocumentID))
	})
}

// revGeneration extracts the numeric generation from a "gen-uuid"
// revision token. Unparseable revisions count as generation zero.
func revGeneration(rev string) int {
	genStr, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	gen, err := strconv.Atoi(genStr)
	if err != nil {
		return 0
	}
	return gen
}
