// Package dsl holds the normalized per-operation records extracted from a
// GraphQL schema or an OpenAPI specification. One record describes one
// queryable operation and is the unit of retrieval context.
package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProtocolGraphQL = "graphql"
	ProtocolREST    = "rest"
)

const (
	CategoryQuery     = "query"
	CategoryMutation  = "mutation"
	CategoryOperation = "operation"
)

// Record is immutable once written; re-running extraction supersedes the
// whole directory rather than merging.
type Record struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Description   string   `yaml:"description"`
	QueryTemplate string   `yaml:"query_template"`
	Variables     []string `yaml:"variables"`
	RelatedTypes  []string `yaml:"related_types,omitempty"`
	Keywords      []string `yaml:"keywords,omitempty"`
}

// ProtocolType derives the retrieval filter value from the record category:
// query/mutation records come from a GraphQL schema, operation records from
// an OpenAPI spec.
func (r *Record) ProtocolType() string {
	if r.Type == CategoryOperation {
		return ProtocolREST
	}
	return ProtocolGraphQL
}

func (r *Record) FileName() string {
	name := strings.ReplaceAll(r.Name, "/", "_")
	return fmt.Sprintf("%s_%s.yaml", r.Type, name)
}

func (r *Record) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dsl dir: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record %q: %w", r.Name, err)
	}

	path := filepath.Join(dir, r.FileName())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write record %q: %w", r.Name, err)
	}

	return nil
}

// LoadDir reads every .yaml record in dir, sorted by file name so that the
// load order is stable across runs.
func LoadDir(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dsl dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var rec Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if rec.Name == "" {
			return nil, fmt.Errorf("record %s has no name", name)
		}

		records = append(records, rec)
	}

	return records, nil
}
