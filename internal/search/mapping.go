package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for coin documents.
//
// Descriptions are free-form and frequently French, so text fields use
// the simple analyzer (lowercase word tokens, no language stemming).
// References are exact catalog numbers and use the keyword analyzer.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	// Reference is matched exactly or by prefix, never tokenized.
	refFieldMapping := bleve.NewTextFieldMapping()
	refFieldMapping.Analyzer = keyword.Name
	refFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("reference", refFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Free-text description fields.
	for _, field := range []string{"anvers", "revers", "general", "seller"} {
		textFieldMapping := bleve.NewTextFieldMapping()
		textFieldMapping.Analyzer = simple.Name
		textFieldMapping.Store = true
		textFieldMapping.IncludeTermVectors = true // For highlighting
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	// Resolved tag values: word-tokenized so "Marc Aurele" matches both
	// the full value and either word.
	tagValuesFieldMapping := bleve.NewTextFieldMapping()
	tagValuesFieldMapping.Analyzer = simple.Name
	tagValuesFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tag_values", tagValuesFieldMapping)

	// Numeric fields for range queries.
	weightFieldMapping := bleve.NewNumericFieldMapping()
	weightFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("weight", weightFieldMapping)

	diameterFieldMapping := bleve.NewNumericFieldMapping()
	diameterFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("diameter", diameterFieldMapping)

	// Timestamps for sorting by recency.
	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	updatedAtFieldMapping := bleve.NewNumericFieldMapping()
	updatedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
