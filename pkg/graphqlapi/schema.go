package graphqlapi

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// jsonScalar passes a Go value straight through to the JSON encoder,
// letting encoding/json's own `json:"..."` tags on ResultNode/ResultEdge
// drive serialization instead of hand-declaring a parallel set of GraphQL
// Object types for every polymorphic chainNode/storyNode union field
// (spec.md §9 "polymorphic node content").
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "An arbitrary JSON-serializable value.",
	Serialize:   func(value any) any { return value },
})

var resultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Result",
	Fields: graphql.Fields{
		"traceIds":      &graphql.Field{Type: graphql.NewList(graphql.String)},
		"hostAddresses": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"threatSeverity": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				r := p.Source.(*model.Result)
				return string(r.ThreatSeverity), nil
			},
		},
		"foundRootNode": &graphql.Field{Type: graphql.Boolean},
		"nodeCount": &graphql.Field{
			Type: graphql.Int,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return len(p.Source.(*model.Result).Nodes), nil
			},
		},
		"edgeCount": &graphql.Field{
			Type: graphql.Int,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return len(p.Source.(*model.Result).Edges), nil
			},
		},
		"nodes": &graphql.Field{
			Type: jsonScalar,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*model.Result).Nodes, nil
			},
		},
		"edges": &graphql.Field{
			Type: jsonScalar,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*model.Result).Edges, nil
			},
		},
	},
})

// GenerateSchema builds the read-only query schema over cache (SPEC_FULL.md
// §6.1): a single result per host, the last N per host, and the set of
// hosts currently cached.
func GenerateSchema(cache *Cache) (graphql.Schema, error) {
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "ok", nil
				},
			},
			"hosts": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return cache.Hosts(), nil
				},
			},
			"result": &graphql.Field{
				Type: resultType,
				Args: graphql.FieldConfigArgument{
					"host": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					host, _ := p.Args["host"].(string)
					if result := cache.Latest(host); result != nil {
						return result, nil
					}
					return nil, nil
				},
			},
			"results": &graphql.Field{
				Type: graphql.NewList(resultType),
				Args: graphql.FieldConfigArgument{
					"host":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					host, _ := p.Args["host"].(string)
					limit, _ := p.Args["limit"].(int)
					return cache.Recent(host, limit), nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("graphqlapi: build schema: %w", err)
	}
	return schema, nil
}
