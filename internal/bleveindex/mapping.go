package bleveindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// FieldDocumentType partitions one scope index by document type.
const FieldDocumentType = "__doctype"

// keywordFields are matched verbatim by filters and sorting.
var keywordFields = []string{
	FieldDocumentType,
	domain.FieldKey,
	domain.FieldType,
	domain.FieldSort,
	domain.FieldIs,
	domain.FieldStatus,
	domain.FieldCode,
	domain.FieldCatalog,
	domain.FieldOutline,
	domain.FieldCreated,
	domain.FieldModified,
	domain.FieldStartDate,
	domain.FieldEndDate,
}

// CreateIndexMapping creates the Bleve index mapping for catalog documents.
// Documents are written with per-field options (see encode), so the mapping
// mainly decides how query text is analyzed for each field.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	for _, name := range keywordFields {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		f.DocValues = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	// Name - analyzed, stored for display
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldName, nameField)

	// Content - analyzed for full-text search
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.FieldContent, contentField)

	priorityField := bleve.NewNumericFieldMapping()
	priorityField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldPriority, priorityField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}
