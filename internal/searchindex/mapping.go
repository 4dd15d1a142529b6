package searchindex

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
)

const analyzerName = "anyfind_path_analyzer"

// buildIndexMapping wires the custom path tokenizer into a bleve
// analyzer and maps spec.md §3's index document fields onto it:
// file_name and pinyin are analyzed text, everything else is an
// unanalyzed keyword or number, and full_path doubles as bleve's
// document ID so no separate primary-key field is needed.
func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": tokenizerName,
	}); err != nil {
		return nil, fmt.Errorf("anyfind: register analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()

	textField := func(analyzer string) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = analyzer
		f.Store = true
		return f
	}
	keywordField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = "keyword"
		f.Store = true
		return f
	}
	numberField := func() *mapping.FieldMapping {
		f := bleve.NewNumericFieldMapping()
		f.Store = true
		return f
	}

	// full_path is also the bleve document ID; mapped here too so it
	// comes back as a stored field, matching spec.md §3's "stored, not
	// tokenised" requirement.
	doc.AddFieldMappingsAt("full_path", keywordField())
	doc.AddFieldMappingsAt("file_name", textField(analyzerName))
	doc.AddFieldMappingsAt("pinyin", textField(analyzerName))
	doc.AddFieldMappingsAt("file_type", keywordField())
	doc.AddFieldMappingsAt("file_ext", keywordField())
	doc.AddFieldMappingsAt("modify_time_str", keywordField())
	doc.AddFieldMappingsAt("file_size_str", keywordField())
	doc.AddFieldMappingsAt("is_hidden", keywordField())
	doc.AddFieldMappingsAt("modify_time", numberField())
	doc.AddFieldMappingsAt("file_size", numberField())

	im.DefaultMapping = doc
	im.DefaultAnalyzer = analyzerName
	return im, nil
}
