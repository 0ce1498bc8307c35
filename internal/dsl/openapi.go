package dsl

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var httpMethods = []string{"get", "post", "put", "delete", "patch"}

type openapiSpec struct {
	Info struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"info"`
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type openapiOperation struct {
	OperationID string `yaml:"operationId"`
	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
	Parameters  []struct {
		Name     string `yaml:"name"`
		In       string `yaml:"in"`
		Required bool   `yaml:"required"`
	} `yaml:"parameters"`
	RequestBody struct {
		Content map[string]struct {
			Schema struct {
				Ref        string              `yaml:"$ref"`
				Properties map[string]yaml.Node `yaml:"properties"`
			} `yaml:"schema"`
		} `yaml:"content"`
	} `yaml:"requestBody"`
	Responses map[string]struct {
		Content map[string]struct {
			Schema struct {
				Ref   string `yaml:"$ref"`
				Items struct {
					Ref string `yaml:"$ref"`
				} `yaml:"items"`
			} `yaml:"schema"`
		} `yaml:"content"`
	} `yaml:"responses"`
}

// ExtractOpenAPI parses an OpenAPI yaml document and emits one "operation"
// record per path+method pair.
func ExtractOpenAPI(spec []byte) ([]Record, error) {
	var parsed openapiSpec
	if err := yaml.Unmarshal(spec, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse openapi spec: %w", err)
	}

	paths := make([]string, 0, len(parsed.Paths))
	for path := range parsed.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var records []Record
	for _, path := range paths {
		item := parsed.Paths[path]
		for _, method := range httpMethods {
			node, ok := item[method]
			if !ok {
				continue
			}

			var op openapiOperation
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
			}

			records = append(records, operationRecord(method, path, op))
		}
	}

	return records, nil
}

func operationRecord(method, path string, op openapiOperation) Record {
	name := op.OperationID
	if name == "" {
		name = fmt.Sprintf("%s_%s", method, strings.Trim(strings.NewReplacer("/", "_", "{", "", "}", "").Replace(path), "_"))
	}

	description := op.Summary
	if description == "" {
		description = op.Description
	}
	if description == "" {
		description = fmt.Sprintf("%s %s", strings.ToUpper(method), path)
	}

	var variables []string
	for _, param := range op.Parameters {
		variables = append(variables, param.Name)
	}

	relatedSeen := make(map[string]bool)
	var related []string
	addRef := func(ref string) {
		if ref == "" {
			return
		}
		parts := strings.Split(ref, "/")
		typeName := parts[len(parts)-1]
		if typeName != "" && !relatedSeen[typeName] {
			relatedSeen[typeName] = true
			related = append(related, typeName)
		}
	}

	for _, content := range op.RequestBody.Content {
		addRef(content.Schema.Ref)
		props := make([]string, 0, len(content.Schema.Properties))
		for prop := range content.Schema.Properties {
			props = append(props, prop)
		}
		sort.Strings(props)
		variables = append(variables, props...)
	}

	statuses := make([]string, 0, len(op.Responses))
	for status := range op.Responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		for _, content := range op.Responses[status].Content {
			addRef(content.Schema.Ref)
			addRef(content.Schema.Items.Ref)
		}
	}

	return Record{
		Name:          name,
		Type:          CategoryOperation,
		Description:   description,
		QueryTemplate: fmt.Sprintf("%s %s", strings.ToUpper(method), path),
		Variables:     variables,
		RelatedTypes:  related,
	}
}
