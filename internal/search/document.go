// Package search provides full-text search over the coin catalog using
// Bleve. The index lives in memory and is rebuilt from the collection
// store on startup; the catalog itself stays the source of truth.
package search

import (
	"github.com/numisapp/numis-server/internal/domain"
)

// CoinDocument is the flattened coin representation held in the index.
// Tag IDs are denormalized into their resolved values so a search for
// "Trajan" finds coins tagged with the Trajan definition.
type CoinDocument struct {
	ID        string   `json:"id"`
	Reference string   `json:"reference,omitempty"`
	Anvers    string   `json:"anvers,omitempty"`
	Revers    string   `json:"revers,omitempty"`
	General   string   `json:"general,omitempty"`
	Seller    string   `json:"seller,omitempty"`
	TagValues []string `json:"tag_values,omitempty"`

	Weight   float64 `json:"weight,omitempty"`
	Diameter float64 `json:"diameter,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names so they
// match the index mapping; Bleve would otherwise use the Go field names.
func (d *CoinDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if d.Reference != "" {
		m["reference"] = d.Reference
	}
	if d.Anvers != "" {
		m["anvers"] = d.Anvers
	}
	if d.Revers != "" {
		m["revers"] = d.Revers
	}
	if d.General != "" {
		m["general"] = d.General
	}
	if d.Seller != "" {
		m["seller"] = d.Seller
	}
	if len(d.TagValues) > 0 {
		m["tag_values"] = d.TagValues
	}
	if d.Weight > 0 {
		m["weight"] = d.Weight
	}
	if d.Diameter > 0 {
		m["diameter"] = d.Diameter
	}

	return m
}

// CoinToDocument flattens a coin. The resolved tag values are provided by
// the caller; the search package does not depend on the registry.
func CoinToDocument(coin *domain.Coin, tagValues []string) *CoinDocument {
	doc := &CoinDocument{
		ID:        coin.ID,
		Reference: coin.Reference,
		Anvers:    coin.Anvers,
		Revers:    coin.Revers,
		General:   coin.General,
		Seller:    coin.Seller,
		TagValues: tagValues,
		CreatedAt: coin.CreatedAt.UnixMilli(),
		UpdatedAt: coin.UpdatedAt.UnixMilli(),
	}
	if coin.Weight != nil {
		doc.Weight = *coin.Weight
	}
	if coin.Diameter != nil {
		doc.Diameter = *coin.Diameter
	}
	return doc
}
