package domain

// Filter is one active facet filter: a category and the selected values
// within it. A coin matches a filter when at least one of its resolved
// tags equals (Category, v) for some selected v.
type Filter struct {
	Category string   `json:"category"`
	Values   []string `json:"values"`
}

// Facet is a derived (category, distinct sorted values) grouping used to
// drive filter UIs.
type Facet struct {
	Category string   `json:"category"`
	Values   []string `json:"values"`
}

// Range is a numeric [Min, Max] filter bound. Coins without the filtered
// field always pass.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v falls within the range, inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}
