// Package graphstore defines the GraphStore contract the retrieval and
// auto-fix subsystems depend on. It ships no concrete Neo4j/FalkorDB/Kuzu
// client — those are external collaborators — but it does own the small
// amount of dialect-shimming logic a caller needs to address either store
// with the same Cypher-shaped statement, mirroring how manifold's
// internal/persistence/databases package separates store-agnostic
// interfaces from per-backend wire clients.
package graphstore

import (
	"context"
	"strings"
)

// Row is a single record returned by ExecuteQuery, keyed by the return
// aliases used in the Cypher statement (e.g. "n", "score").
type Row map[string]any

// GraphStore is the minimal surface the core requires from whatever graph
// database backs it. Implementations live outside this module (an ingestion
// service, a thin Neo4j/FalkorDB/Kuzu driver wrapper); this module only
// consumes the interface.
type GraphStore interface {
	// ExecuteQuery runs a parameterized Cypher-dialect statement and returns
	// the resulting rows.
	ExecuteQuery(ctx context.Context, statement string, params map[string]any) ([]Row, error)
	// Dialect reports which query-syntax variant ExecuteQuery expects
	// (statements built with the Dialect helpers below are portable across
	// both).
	Dialect() Dialect
}

// Dialect names the Cypher-shaped variant a GraphStore implementation
// speaks. The core never issues raw string literals for id-functions or
// vector search syntax; it always goes through these helpers so the same
// retrieval code targets either backend.
type Dialect int

const (
	DialectFalkorDB Dialect = iota
	DialectNeo4j
)

// IDFunction returns the Cypher function used to address a node's internal
// identifier: FalkorDB exposes id(n), Neo4j's id() is deprecated in favor of
// elementId(n).
func (d Dialect) IDFunction() string {
	if d == DialectNeo4j {
		return "elementId"
	}
	return "id"
}

// VectorIndexName returns the name of the vector index for a node label,
// following each backend's own convention: FalkorDB addresses indexes by
// label directly, Neo4j requires a named index, conventionally
// lower(label)+"_embeddings".
func (d Dialect) VectorIndexName(label string) string {
	if d == DialectNeo4j {
		return strings.ToLower(label) + "_embeddings"
	}
	return label
}

// VectorQueryClause builds the `CALL db.index.vector...` clause for a
// similarity search over `label` using the bound parameters `$k` and
// `$embedding`, matching each backend's native vector query procedure.
func (d Dialect) VectorQueryClause(label string) string {
	if d == DialectNeo4j {
		return "CALL db.index.vector.queryNodes($indexName, $k, $embedding) YIELD node, score"
	}
	return "CALL db.idx.vector.queryNodes('" + label + "', 'embedding', $k, vecf32($embedding)) YIELD node, score"
}
