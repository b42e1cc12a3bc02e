package analytics

import "github.com/marketgraph/marketgraph/pkg/types"

// Export converts a subgraph into the generic node-link form consumed
// by reporting and visualization layers. Pure transform, no side
// effects, no backend access.
func Export(sub *types.SubGraph) *types.NodeLinkGraph {
	if sub == nil {
		return &types.NodeLinkGraph{
			Nodes: []types.NodeLinkNode{},
			Links: []types.NodeLinkEdge{},
		}
	}

	nodes := make([]types.NodeLinkNode, 0, len(sub.Entities))
	for _, entity := range sub.Entities {
		nodes = append(nodes, types.NodeLinkNode{
			ID:         entity.ID,
			Label:      entity.Name,
			Type:       string(entity.Type),
			Properties: entity.Properties,
		})
	}

	links := make([]types.NodeLinkEdge, 0, len(sub.Relationships))
	for _, rel := range sub.Relationships {
		links = append(links, types.NodeLinkEdge{
			Source:     rel.SourceID,
			Target:     rel.TargetID,
			Type:       string(rel.Type),
			Weight:     rel.Weight,
			Properties: rel.Properties,
		})
	}

	return &types.NodeLinkGraph{Nodes: nodes, Links: links}
}
