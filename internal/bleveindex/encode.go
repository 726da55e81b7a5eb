package bleveindex

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// analyzers used when encoding text fields.
type analyzers struct {
	keyword  analysis.Analyzer
	standard analysis.Analyzer
}

// docID is the Bleve id of an entity document within a scope index.
func docID(documentType, key string) string {
	return documentType + ":" + key
}

// encode converts an index document into a Bleve document. Analyzed text
// fields use the standard analyzer; the rest are indexed as single terms.
// Times are written in the fixed-width index layout so that term ranges
// compare chronologically.
func encode(documentType string, doc *domain.IndexDocument, a analyzers) (*document.Document, error) {
	key := doc.Key()
	if key == "" {
		return nil, fmt.Errorf("%w: document has no %s", domain.ErrInvalidArgument, domain.FieldKey)
	}

	d := document.NewDocument(docID(documentType, key))
	d.AddField(document.NewTextFieldCustom(FieldDocumentType, nil, []byte(documentType),
		index.IndexField|index.StoreField|index.DocValues, a.keyword))

	positions := make(map[string]uint64)
	for _, f := range doc.Fields {
		var arrayPositions []uint64
		if f.Collection {
			arrayPositions = []uint64{positions[f.Name]}
			positions[f.Name]++
		}

		opts := index.IndexField | index.DocValues
		if f.Stored {
			opts |= index.StoreField
		}

		switch v := f.Value.(type) {
		case string:
			analyzer := a.keyword
			if f.Analyzed {
				analyzer = a.standard
				opts |= index.IncludeTermVectors
			}
			d.AddField(document.NewTextFieldCustom(f.Name, arrayPositions, []byte(v), opts, analyzer))
		case time.Time:
			d.AddField(document.NewTextFieldCustom(f.Name, arrayPositions, []byte(domain.FormatIndexTime(v)), opts, a.keyword))
		case float64:
			d.AddField(document.NewNumericFieldWithIndexingOptions(f.Name, arrayPositions, v, opts))
		case int:
			d.AddField(document.NewNumericFieldWithIndexingOptions(f.Name, arrayPositions, float64(v), opts))
		case bool:
			d.AddField(document.NewBooleanFieldWithIndexingOptions(f.Name, arrayPositions, v, opts))
		case nil:
			continue
		default:
			return nil, fmt.Errorf("%w: field %s has unsupported value type %T", domain.ErrInvalidArgument, f.Name, f.Value)
		}
	}
	return d, nil
}
