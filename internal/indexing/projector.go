package indexing

import (
	"strings"
	"time"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// Projector converts authoritative entities into index documents.
// Project is a pure function of the entity and safe for concurrent use.
type Projector struct {
	// LegacyStatus reproduces the historical status derivation, which marks
	// every persisted entity hidden. Only needed to stay compatible with
	// indexes written by older builders.
	LegacyStatus bool
}

// NewProjector creates a projector.
func NewProjector(legacyStatus bool) *Projector {
	return &Projector{LegacyStatus: legacyStatus}
}

// Project builds the index document for an entity.
func (p *Projector) Project(e *domain.Entity) *domain.IndexDocument {
	doc := domain.NewIndexDocument()
	status := p.status(e)

	doc.Add(keyword(domain.FieldKey, strings.ToLower(e.ID)))
	doc.Add(keyword(domain.FieldType, string(e.Kind)))
	doc.Add(keyword(domain.FieldSort, e.Name))

	for _, tag := range []string{e.Kind.Tag(), status, e.Code} {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		doc.Add(domain.Field{Name: domain.FieldIs, Value: strings.ToLower(tag), Collection: true})
	}

	doc.Add(keyword(domain.FieldStatus, status))
	doc.Add(keyword(domain.FieldCode, e.Code))
	doc.Add(domain.Field{Name: domain.FieldName, Value: e.Name, Stored: true, Analyzed: true})
	doc.Add(domain.Field{Name: domain.FieldCreated, Value: e.CreatedAt.UTC(), Stored: true})

	modified := domain.MaxTime
	if e.ModifiedAt != nil {
		modified = e.ModifiedAt.UTC()
	}
	doc.Add(domain.Field{Name: domain.FieldModified, Value: modified, Stored: true})
	doc.Add(domain.Field{Name: domain.FieldPriority, Value: float64(e.Priority), Stored: true})

	for _, link := range e.Links {
		doc.Add(domain.Field{
			Name:   strings.ToLower(domain.PriorityField(link.CatalogID, linkTarget(link, e))),
			Value:  float64(link.Priority),
			Stored: true,
		})
	}

	for _, catalog := range catalogs(e.Outlines) {
		doc.Add(domain.Field{Name: domain.FieldCatalog, Value: catalog, Stored: true, Collection: true})
	}
	for _, outline := range ExpandOutlines(e.Outlines) {
		doc.Add(domain.Field{Name: domain.FieldOutline, Value: outline, Stored: true, Collection: true})
	}

	if e.Kind == domain.KindProduct {
		start := e.CreatedAt.UTC()
		if e.StartDate != nil {
			start = e.StartDate.UTC()
		}
		end := domain.MaxTime
		if e.EndDate != nil {
			end = e.EndDate.UTC()
		}
		doc.Add(domain.Field{Name: domain.FieldStartDate, Value: start, Stored: true})
		doc.Add(domain.Field{Name: domain.FieldEndDate, Value: end, Stored: true})
	}

	p.addProperties(doc, e)

	for _, v := range []string{e.Name, e.Code} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		doc.Add(content(domain.FieldContent, v))
	}

	return doc
}

func (p *Projector) status(e *domain.Entity) string {
	if p.LegacyStatus {
		if !e.IsActive || e.ID != "" {
			return domain.StatusHidden
		}
		return domain.StatusVisible
	}
	if e.IsActive {
		return domain.StatusVisible
	}
	return domain.StatusHidden
}

// addProperties writes one typed field per property value. Text values are
// also appended, lower-cased, to a content field.
func (p *Projector) addProperties(doc *domain.IndexDocument, e *domain.Entity) {
	for _, pv := range e.PropertyValues {
		if pv.Value == nil {
			continue
		}
		name := strings.ToLower(pv.PropertyName)
		prop, _ := e.FindProperty(pv)

		switch pv.ValueType {
		case domain.ValueNumber:
			if n, ok := toFloat(pv.Value); ok {
				doc.Add(domain.Field{Name: name, Value: n, Stored: true, Analyzed: true, Collection: true})
			}
		case domain.ValueBoolean:
			if b, ok := pv.Value.(bool); ok {
				doc.Add(domain.Field{Name: name, Value: b, Stored: true, Analyzed: true, Collection: true})
			}
		case domain.ValueDateTime:
			if t, ok := pv.Value.(time.Time); ok {
				doc.Add(domain.Field{Name: name, Value: t.UTC(), Stored: true, Analyzed: true, Collection: true})
			}
		case domain.ValueLongText, domain.ValueShortText:
			text, ok := pv.Value.(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			if pv.ValueType == domain.ValueLongText {
				doc.Add(domain.Field{Name: name, Value: strings.ToLower(text), Stored: true, Analyzed: true, Collection: true})
			} else {
				doc.Add(domain.Field{Name: name, Value: text, Stored: true, Collection: true})
			}

			field := domain.FieldContent
			if prop.Multilingual && pv.LanguageCode != "" {
				field = domain.ContentField(pv.LanguageCode)
			}
			doc.Add(content(field, strings.ToLower(text)))
		}
	}
}

// ExpandOutlines turns outlines into the path strings written to the
// outline field. For each valid outline the trailing entity id is dropped;
// the root container and the full container path are emitted, plus a
// root/child shortcut for every non-root container when the path is longer
// than two. Results are lower-cased and deduplicated in first-seen order.
func ExpandOutlines(outlines []domain.Outline) []string {
	var out []string
	seen := make(map[string]struct{})
	emit := func(v string) {
		v = strings.ToLower(v)
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, o := range outlines {
		if !o.Valid() {
			continue
		}
		containers := o.Containers()
		root := containers[0]
		emit(root)
		emit(strings.Join(containers, domain.OutlineSeparator))
		if len(containers) > 2 {
			for _, c := range containers[1:] {
				emit(root + domain.OutlineSeparator + c)
			}
		}
	}
	return out
}

// catalogs returns the lower-cased, deduplicated root ids of valid outlines.
func catalogs(outlines []domain.Outline) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, o := range outlines {
		if !o.Valid() {
			continue
		}
		root := strings.ToLower(o.Root())
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		out = append(out, root)
	}
	return out
}

// linkTarget is the container an entity is linked into: the category when
// set, otherwise the entity itself at the catalog root.
func linkTarget(link domain.Link, e *domain.Entity) string {
	if link.CategoryID != "" {
		return link.CategoryID
	}
	return e.ID
}

func keyword(name, value string) domain.Field {
	return domain.Field{Name: name, Value: value, Stored: true}
}

func content(name, value string) domain.Field {
	return domain.Field{Name: name, Value: value, Analyzed: true, Collection: true}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
