package dsl

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// ExtractGraphQL parses a GraphQL SDL document and emits one record per
// query and mutation field.
func ExtractGraphQL(name, sdl string) ([]Record, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("failed to parse graphql schema: %w", err)
	}

	var records []Record
	if schema.Query != nil {
		records = append(records, extractRootFields(schema, schema.Query, CategoryQuery)...)
	}
	if schema.Mutation != nil {
		records = append(records, extractRootFields(schema, schema.Mutation, CategoryMutation)...)
	}

	return records, nil
}

func extractRootFields(schema *ast.Schema, root *ast.Definition, category string) []Record {
	var records []Record

	for _, field := range root.Fields {
		if strings.HasPrefix(field.Name, "__") {
			continue
		}

		description := field.Description
		if description == "" {
			description = fmt.Sprintf("%s %s", category, field.Name)
		}

		records = append(records, Record{
			Name:          field.Name,
			Type:          category,
			Description:   description,
			QueryTemplate: buildTemplate(category, field),
			Variables:     argumentNames(field.Arguments),
			RelatedTypes:  relatedTypes(schema, field),
		})
	}

	return records
}

// buildTemplate renders a skeleton such as
// "query ($id: ID!) { board(id: $id) { ... } }".
func buildTemplate(category string, field *ast.FieldDefinition) string {
	var varDefs, args []string
	for _, arg := range field.Arguments {
		varDefs = append(varDefs, fmt.Sprintf("$%s: %s", arg.Name, arg.Type.String()))
		args = append(args, fmt.Sprintf("%s: $%s", arg.Name, arg.Name))
	}

	var b strings.Builder
	b.WriteString(category)
	if len(varDefs) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(varDefs, ", "))
		b.WriteString(")")
	}
	b.WriteString(" { ")
	b.WriteString(field.Name)
	if len(args) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(args, ", "))
		b.WriteString(")")
	}
	b.WriteString(" { ... } }")

	return b.String()
}

func argumentNames(args ast.ArgumentDefinitionList) []string {
	names := make([]string, 0, len(args))
	for _, arg := range args {
		names = append(names, arg.Name)
	}
	return names
}

// relatedTypes collects composite types referenced by the field: the return
// type plus any input object arguments. Scalars and enums carry no fields
// worth expanding.
func relatedTypes(schema *ast.Schema, field *ast.FieldDefinition) []string {
	seen := make(map[string]bool)
	var types []string

	add := func(typeName string) {
		def, ok := schema.Types[typeName]
		if !ok || seen[typeName] || strings.HasPrefix(typeName, "__") {
			return
		}
		if def.Kind != ast.Object && def.Kind != ast.InputObject && def.Kind != ast.Interface {
			return
		}
		seen[typeName] = true
		types = append(types, typeName)
	}

	add(field.Type.Name())
	for _, arg := range field.Arguments {
		add(arg.Type.Name())
	}

	return types
}
