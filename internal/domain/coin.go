package domain

import (
	"bytes"
	"encoding/json/v2"
	"time"
)

// Coin represents a single catalog entry in the collection.
//
// JSON field names are camelCase because coins are exchanged verbatim with
// the remote CouchDB mirror and with snapshot files produced by earlier
// releases; the wire format is frozen.
type Coin struct {
	ID        string `json:"id"`
	Reference string `json:"reference,omitempty"`

	// Images holds URLs or local blob references, in display order.
	// Blob resolution is owned by the image cache, not the catalog.
	Images []string `json:"images"`

	// Tags holds TagDefinition IDs. Referential integrity is not enforced:
	// a dangling ID simply resolves to no tag during lookup.
	Tags []string `json:"tags"`

	Anvers  string `json:"anvers,omitempty"`
	Revers  string `json:"revers,omitempty"`
	General string `json:"general,omitempty"`
	Seller  string `json:"seller,omitempty"`

	Weight    *float64 `json:"weight,omitempty"`
	Diameter  *float64 `json:"diameter,omitempty"`
	PricePaid *float64 `json:"pricePaid,omitempty"`

	AddedToCollectionAt *time.Time `json:"addedToCollectionAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// CoinInput carries every caller-settable coin field. ID, CreatedAt and
// UpdatedAt are assigned by the collection store.
type CoinInput struct {
	Reference           string     `json:"reference,omitempty"`
	Images              []string   `json:"images"`
	Tags                []string   `json:"tags"`
	Anvers              string     `json:"anvers,omitempty"`
	Revers              string     `json:"revers,omitempty"`
	General             string     `json:"general,omitempty"`
	Seller              string     `json:"seller,omitempty"`
	Weight              *float64   `json:"weight,omitempty"`
	Diameter            *float64   `json:"diameter,omitempty"`
	PricePaid           *float64   `json:"pricePaid,omitempty"`
	AddedToCollectionAt *time.Time `json:"addedToCollectionAt,omitempty"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (c *Coin) Touch() {
	c.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (c *Coin) InitTimestamps() {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
}

// CoinsEqual reports deep content equality of two coin sequences.
// Order matters: the sync engine treats a reorder as a change, matching
// whole-document replacement semantics.
func CoinsEqual(a, b []Coin) bool {
	if len(a) != len(b) {
		return false
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
