package domain

import "time"

// SyncDocumentID is the fixed ID of the single document exchanged between
// the local and remote stores. The name is shared with the original
// browser client so both can mirror the same CouchDB database.
const SyncDocumentID = "numis-data"

// SyncDocument is the unit of synchronization: the whole collection plus
// the whole tag registry, replaced as one document. Rev is an opaque
// optimistic-concurrency token; a put with a stale Rev fails and the
// caller must re-fetch.
type SyncDocument struct {
	ID    string          `json:"_id"`
	Rev   string          `json:"_rev,omitempty"`
	Coins []Coin          `json:"coins"`
	Tags  []TagDefinition `json:"tags"`
}

// NewSyncDocument builds a document carrying the given state under the
// fixed document ID.
func NewSyncDocument(coins []Coin, tags []TagDefinition) *SyncDocument {
	return &SyncDocument{
		ID:    SyncDocumentID,
		Coins: coins,
		Tags:  tags,
	}
}

// ContentEquals reports whether two documents carry the same coins and
// tags, ignoring revisions.
func (d *SyncDocument) ContentEquals(other *SyncDocument) bool {
	if other == nil {
		return false
	}
	return CoinsEqual(d.Coins, other.Coins) && TagDefinitionsEqual(d.Tags, other.Tags)
}

// Snapshot is the import/export file format. ExportedAt is informational;
// imports also accept a legacy bare coin array with no tags component.
type Snapshot struct {
	Coins      []Coin          `json:"coins"`
	Tags       []TagDefinition `json:"tags"`
	ExportedAt time.Time       `json:"exportedAt"`
}
