// Package milvus stores document embeddings plus retrieval metadata. The
// protocol_type field backs the exact-match filter the retriever depends on.
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/nl2api/backend/internal/docbuilder"
	"github.com/nl2api/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// IndexedDocument is a document plus its embedding, ready for insertion.
type IndexedDocument struct {
	Document  docbuilder.Document
	Embedding []float32
}

type SearchResult struct {
	Name         string
	Content      string
	ProtocolType string
	Variables    []string
	RelatedTypes []string
	Source       string
	Score        float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates and loads the collection if it does not exist.
func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
			return fmt.Errorf("failed to load collection: %w", err)
		}
		return nil
	}

	return m.createCollection(ctx)
}

// RecreateCollection drops and rebuilds the collection. Index builds replace
// the store wholesale; documents are never mutated in place.
func (m *Client) RecreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		if err := m.client.DropCollection(ctx, m.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		logger.Info("Existing collection dropped", zap.String("collection", m.collectionName))
	}

	return m.createCollection(ctx)
}

func (m *Client) createCollection(ctx context.Context) error {
	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "API DSL document embeddings",
		Fields: []*entity.Field{
			{
				Name:       "doc_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "name",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "protocol_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "16",
				},
			},
			{
				Name:     "variables",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "related_types",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
		},
	}

	err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, docs []IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	docIDs := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	contents := make([]string, len(docs))
	names := make([]string, len(docs))
	protocols := make([]string, len(docs))
	variables := make([]string, len(docs))
	relatedTypes := make([]string, len(docs))
	sources := make([]string, len(docs))

	for i, doc := range docs {
		docIDs[i] = doc.Document.ID
		embeddings[i] = doc.Embedding
		contents[i] = doc.Document.Content
		names[i] = doc.Document.Metadata.Name
		protocols[i] = doc.Document.Metadata.ProtocolType
		variables[i] = JoinList(doc.Document.Metadata.Variables)
		relatedTypes[i] = JoinList(doc.Document.Metadata.RelatedTypes)
		sources[i] = doc.Document.Metadata.Source
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("name", names),
		entity.NewColumnVarChar("protocol_type", protocols),
		entity.NewColumnVarChar("variables", variables),
		entity.NewColumnVarChar("related_types", relatedTypes),
		entity.NewColumnVarChar("source", sources),
	)

	if err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Documents inserted into vector index", zap.Int("count", len(docs)))

	return nil
}

// Search runs ANN search over the embedding field. A non-empty protocolType
// becomes an exact-match filter expression, so results never cross protocols.
func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, protocolType string) ([]SearchResult, error) {
	expr := ""
	if protocolType != "" {
		expr = fmt.Sprintf(`protocol_type == "%s"`, protocolType)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"name", "content", "protocol_type", "variables", "related_types", "source"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		nameCol := sr.Fields.GetColumn("name")
		contentCol := sr.Fields.GetColumn("content")
		protocolCol := sr.Fields.GetColumn("protocol_type")
		variablesCol := sr.Fields.GetColumn("variables")
		relatedCol := sr.Fields.GetColumn("related_types")
		sourceCol := sr.Fields.GetColumn("source")

		for i := 0; i < sr.ResultCount; i++ {
			name, _ := nameCol.Get(i)
			content, _ := contentCol.Get(i)
			protocol, _ := protocolCol.Get(i)
			vars, _ := variablesCol.Get(i)
			related, _ := relatedCol.Get(i)
			source, _ := sourceCol.Get(i)

			results = append(results, SearchResult{
				Name:         name.(string),
				Content:      content.(string),
				ProtocolType: protocol.(string),
				Variables:    SplitList(vars.(string)),
				RelatedTypes: SplitList(related.(string)),
				Source:       source.(string),
				Score:        sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filter", expr),
	)

	return results, nil
}

// JoinList and SplitList encode list metadata into the varchar columns and
// back without loss for ordinary identifier values.
func JoinList(values []string) string {
	return strings.Join(values, ", ")
}

func SplitList(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
