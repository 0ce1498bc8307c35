// Package docbuilder flattens DSL records and raw documentation into the
// text-plus-metadata documents the vector index stores.
package docbuilder

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nl2api/backend/internal/dsl"
	"github.com/nl2api/backend/pkg/utils"
)

type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Metadata travels with every indexed document. ProtocolType must always be
// set: retrieval filters on it.
type Metadata struct {
	Name         string
	ProtocolType string
	Variables    []string
	RelatedTypes []string
	Source       string
}

// FromRecord flattens one DSL record into an indexable document.
func FromRecord(rec dsl.Record, source string) Document {
	var b strings.Builder
	fmt.Fprintf(&b, "DSL `%s` (%s): %s\n", rec.Name, rec.Type, stripHTML(rec.Description))
	fmt.Fprintf(&b, "Query:\n%s", rec.QueryTemplate)
	if len(rec.Variables) > 0 {
		fmt.Fprintf(&b, "\nVariables: %s", strings.Join(rec.Variables, ", "))
	}
	if len(rec.Keywords) > 0 {
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(rec.Keywords, ", "))
	}

	return Document{
		ID:      utils.HashString(rec.ProtocolType() + ":" + rec.Name),
		Content: b.String(),
		Metadata: Metadata{
			Name:         rec.Name,
			ProtocolType: rec.ProtocolType(),
			Variables:    rec.Variables,
			RelatedTypes: rec.RelatedTypes,
			Source:       source,
		},
	}
}

// FromMarkdown wraps raw documentation text as a document under the given
// protocol type.
func FromMarkdown(name, content, protocolType, source string) Document {
	return Document{
		ID:      utils.HashString(protocolType + ":" + name),
		Content: strings.TrimSpace(content),
		Metadata: Metadata{
			Name:         name,
			ProtocolType: protocolType,
			Source:       source,
		},
	}
}

// FromRecords builds documents for a whole extraction run.
func FromRecords(records []dsl.Record, source string) []Document {
	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, FromRecord(rec, source))
	}
	return docs
}

// stripHTML removes markup that OpenAPI and GraphQL descriptions frequently
// embed, keeping the embedded text noise-free.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return s
	}
	return text
}
