package domain

import (
	"bytes"
	"encoding/json/v2"
	"time"
)

// Tag is a (category, value) taxonomy pair. Equality is case-sensitive
// exact match on both fields.
type Tag struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// TagDefinition is a canonical taxonomy entry owned by the tag registry.
// The ID is stable and never reused. No uniqueness is enforced on the
// (category, value) pair; duplicates are detected by a maintenance
// operation instead.
type TagDefinition struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pair returns the (category, value) pair of the definition.
func (d TagDefinition) Pair() Tag {
	return Tag{Category: d.Category, Value: d.Value}
}

// TagDefinitionsEqual reports deep content equality of two definition
// sequences, order included.
func TagDefinitionsEqual(a, b []TagDefinition) bool {
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
