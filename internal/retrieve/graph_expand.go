package retrieve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Zach-hammad/repotoire-sub004/internal/graphstore"
	"github.com/Zach-hammad/repotoire-sub004/internal/model"
)

const maxRelationships = 20

var expandableEdges = []model.EdgeKind{
	model.EdgeCalls, model.EdgeUses, model.EdgeInherits, model.EdgeImports, model.EdgeContains,
}

// ExpandRelationships issues one graph query per result to follow
// CALLS|USES|INHERITS|IMPORTS|CONTAINS edges one hop, collecting up to
// maxRelationships neighbor qualified names with their edge types.
// Failures are logged and yield an empty relationship list; they never
// fail the caller.
func ExpandRelationships(ctx context.Context, g graphstore.GraphStore, results []model.RetrievalResult) []model.RetrievalResult {
	if g == nil {
		return results
	}
	for i := range results {
		rels, err := expandOne(ctx, g, results[i].QualifiedName)
		if err != nil {
			log.Warn().Err(err).Str("qualified_name", results[i].QualifiedName).
				Msg("graph expansion failed, returning empty relationships")
			results[i].Relationships = nil
			continue
		}
		results[i].Relationships = rels
	}
	return results
}

func expandOne(ctx context.Context, g graphstore.GraphStore, qname string) ([]model.Relationship, error) {
	statement := fmt.Sprintf(
		"MATCH (n {qualifiedName: $qname})-[r:%s]->(m) RETURN m.qualifiedName AS target, type(r) AS kind LIMIT $limit",
		edgeTypeList(),
	)
	rows, err := g.ExecuteQuery(ctx, statement, map[string]any{
		"qname": qname,
		"limit": maxRelationships,
	})
	if err != nil {
		return nil, fmt.Errorf("expand relationships for %q: %w", qname, err)
	}

	out := make([]model.Relationship, 0, len(rows))
	for _, row := range rows {
		target, _ := row["target"].(string)
		kind, _ := row["kind"].(string)
		if target == "" {
			continue
		}
		out = append(out, model.Relationship{QualifiedName: target, EdgeKind: model.EdgeKind(kind)})
		if len(out) >= maxRelationships {
			break
		}
	}
	return out, nil
}

func edgeTypeList() string {
	s := ""
	for i, e := range expandableEdges {
		if i > 0 {
			s += "|"
		}
		s += string(e)
	}
	return s
}
