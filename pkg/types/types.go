package types

import (
	"errors"
	"math"
	"time"
)

// Validation errors
var (
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrEmptyWorkspaceID    = errors.New("workspace_id cannot be empty")
	ErrEmptyID             = errors.New("id cannot be empty")
	ErrInvalidEntityType   = errors.New("invalid entity type")
	ErrInvalidRelationType = errors.New("invalid relation type")
	ErrSelfLoop            = errors.New("relationship source and target must differ")
	ErrInvalidLimit        = errors.New("limit must be positive")
)

// Operational errors. Read paths return nil/empty for absent data;
// ErrNotFound is reserved for operations where the referenced record
// must exist, such as relationship endpoint checks.
var (
	ErrNotFound           = errors.New("not found")
	ErrWorkspaceViolation = errors.New("workspace violation")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// EntityType is the closed set of node types in the graph.
type EntityType string

const (
	EntityCompany    EntityType = "Company"
	EntityICP        EntityType = "ICP"
	EntityCompetitor EntityType = "Competitor"
	EntityChannel    EntityType = "Channel"
	EntityPainPoint  EntityType = "PainPoint"
	EntityUSP        EntityType = "USP"
	EntityFeature    EntityType = "Feature"
	EntityMove       EntityType = "Move"
	EntityCampaign   EntityType = "Campaign"
	EntityContent    EntityType = "Content"
)

// EntityTypes lists every valid entity type.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityCompany, EntityICP, EntityCompetitor, EntityChannel,
		EntityPainPoint, EntityUSP, EntityFeature, EntityMove,
		EntityCampaign, EntityContent,
	}
}

// Valid reports whether t is a member of the closed entity type set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCompany, EntityICP, EntityCompetitor, EntityChannel,
		EntityPainPoint, EntityUSP, EntityFeature, EntityMove,
		EntityCampaign, EntityContent:
		return true
	}
	return false
}

// RelationType is the closed set of directed edge types. Every type has
// a defined reverse so the graph can be inverted.
type RelationType string

const (
	RelationHasICP        RelationType = "HAS_ICP"
	RelationICPOf         RelationType = "ICP_OF"
	RelationHasPainPoint  RelationType = "HAS_PAIN_POINT"
	RelationPainPointOf   RelationType = "PAIN_POINT_OF"
	RelationCompetesWith  RelationType = "COMPETES_WITH"
	RelationTargets       RelationType = "TARGETS"
	RelationTargetedBy    RelationType = "TARGETED_BY"
	RelationAddresses     RelationType = "ADDRESSES"
	RelationAddressedBy   RelationType = "ADDRESSED_BY"
	RelationHasFeature    RelationType = "HAS_FEATURE"
	RelationFeatureOf     RelationType = "FEATURE_OF"
	RelationHasUSP        RelationType = "HAS_USP"
	RelationUSPOf         RelationType = "USP_OF"
	RelationUsesChannel   RelationType = "USES_CHANNEL"
	RelationChannelUsedBy RelationType = "CHANNEL_USED_BY"
	RelationRunsCampaign  RelationType = "RUNS_CAMPAIGN"
	RelationCampaignOf    RelationType = "CAMPAIGN_OF"
	RelationPromotes      RelationType = "PROMOTES"
	RelationPromotedBy    RelationType = "PROMOTED_BY"
	RelationMentions      RelationType = "MENTIONS"
	RelationMentionedBy   RelationType = "MENTIONED_BY"
	RelationRespondsTo    RelationType = "RESPONDS_TO"
	RelationRespondedBy   RelationType = "RESPONDED_BY"
)

// reverseRelations maps each relation type to its inverse.
// COMPETES_WITH is symmetric and maps to itself.
var reverseRelations = map[RelationType]RelationType{
	RelationHasICP:        RelationICPOf,
	RelationICPOf:         RelationHasICP,
	RelationHasPainPoint:  RelationPainPointOf,
	RelationPainPointOf:   RelationHasPainPoint,
	RelationCompetesWith:  RelationCompetesWith,
	RelationTargets:       RelationTargetedBy,
	RelationTargetedBy:    RelationTargets,
	RelationAddresses:     RelationAddressedBy,
	RelationAddressedBy:   RelationAddresses,
	RelationHasFeature:    RelationFeatureOf,
	RelationFeatureOf:     RelationHasFeature,
	RelationHasUSP:        RelationUSPOf,
	RelationUSPOf:         RelationHasUSP,
	RelationUsesChannel:   RelationChannelUsedBy,
	RelationChannelUsedBy: RelationUsesChannel,
	RelationRunsCampaign:  RelationCampaignOf,
	RelationCampaignOf:    RelationRunsCampaign,
	RelationPromotes:      RelationPromotedBy,
	RelationPromotedBy:    RelationPromotes,
	RelationMentions:      RelationMentionedBy,
	RelationMentionedBy:   RelationMentions,
	RelationRespondsTo:    RelationRespondedBy,
	RelationRespondedBy:   RelationRespondsTo,
}

// Valid reports whether t is a member of the closed relation type set.
func (t RelationType) Valid() bool {
	_, ok := reverseRelations[t]
	return ok
}

// Reverse returns the inverse relation type, or t itself if t is unknown.
func (t RelationType) Reverse() RelationType {
	if rev, ok := reverseRelations[t]; ok {
		return rev
	}
	return t
}

// Direction selects which incident relationships of an entity to list.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// GraphEntity represents a typed node in the knowledge graph.
// Properties is a genuinely open string-keyed map; domain data is
// schemaless by design.
type GraphEntity struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Type        EntityType     `json:"entity_type"`
	Name        string         `json:"name"`
	Properties  map[string]any `json:"properties,omitempty"`
	Embedding   []float32      `json:"embedding,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks the entity's required fields.
func (e *GraphEntity) Validate() error {
	if e.Name == "" {
		return ErrEmptyName
	}
	if e.WorkspaceID == "" {
		return ErrEmptyWorkspaceID
	}
	if !e.Type.Valid() {
		return ErrInvalidEntityType
	}
	return nil
}

// ValidateForCreate additionally requires an assigned ID.
func (e *GraphEntity) ValidateForCreate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	return e.Validate()
}

// GraphRelationship represents a typed, directed, weighted edge between
// two entities in the same workspace.
type GraphRelationship struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        RelationType   `json:"relation_type"`
	Weight      float64        `json:"weight"`
	Properties  map[string]any `json:"properties,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks the relationship's required fields and the no-self-loop
// invariant. Endpoint existence is the store's responsibility.
func (r *GraphRelationship) Validate() error {
	if r.WorkspaceID == "" {
		return ErrEmptyWorkspaceID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return ErrEmptyID
	}
	if r.SourceID == r.TargetID {
		return ErrSelfLoop
	}
	if !r.Type.Valid() {
		return ErrInvalidRelationType
	}
	return nil
}

// ClampWeight normalizes a relationship weight into [0, 1].
// NaN is treated as unset and defaults to 1.0. Lenient on purpose:
// an out-of-range weight is clamped, not rejected.
func ClampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return 1.0
	}
	if w < 0 {
		return 0.0
	}
	if w > 1 {
		return 1.0
	}
	return w
}

// SubGraph is the transient, bounded result of a traversal. Never persisted.
type SubGraph struct {
	Entities      []*GraphEntity       `json:"entities"`
	Relationships []*GraphRelationship `json:"relationships"`
	CenterID      string               `json:"center_id"`
	Depth         int                  `json:"depth"`
}

// GraphPattern is a declarative shape describing a class of matches,
// not an instance.
type GraphPattern struct {
	// EntityTypes constrains which entity types may appear in a match.
	// Empty means any type.
	EntityTypes []EntityType `json:"entity_types,omitempty"`
	// RelationTypes constrains which relationship types may be traversed.
	// Empty means any type.
	RelationTypes []RelationType `json:"relation_types,omitempty"`
	// MinDepth is the minimum traversal depth a match must reach.
	MinDepth int `json:"min_depth"`
	// MaxDepth bounds the traversal.
	MaxDepth int `json:"max_depth"`
	// Properties are exact-match constraints on the root entity.
	Properties map[string]any `json:"properties,omitempty"`
}

// AllowsEntityType reports whether the pattern permits the given entity type.
func (p *GraphPattern) AllowsEntityType(t EntityType) bool {
	if len(p.EntityTypes) == 0 {
		return true
	}
	for _, et := range p.EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// AllowsRelationType reports whether the pattern permits the given relation type.
func (p *GraphPattern) AllowsRelationType(t RelationType) bool {
	if len(p.RelationTypes) == 0 {
		return true
	}
	for _, rt := range p.RelationTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// PathMode selects the cost model for path finding.
type PathMode string

const (
	// PathShortest minimizes hop count with unweighted BFS.
	PathShortest PathMode = "shortest"
	// PathWeighted minimizes summed relationship weight.
	PathWeighted PathMode = "weighted"
	// PathSemantic minimizes embedding-distance-derived cost.
	PathSemantic PathMode = "semantic"
)

// PathResult reports a single path found between two entities.
type PathResult struct {
	Entities      []*GraphEntity       `json:"entities"`
	Relationships []*GraphRelationship `json:"relationships"`
	Cost          float64              `json:"cost"`
	Hops          int                  `json:"hops"`
	Mode          PathMode             `json:"mode"`
}

// PatternMatch reports one structural match of a GraphPattern.
type PatternMatch struct {
	RootID        string               `json:"root_id"`
	Entities      []*GraphEntity       `json:"entities"`
	Relationships []*GraphRelationship `json:"relationships"`
	Depth         int                  `json:"depth"`
	Confidence    float64              `json:"confidence"`
}

// CentralityScore ranks an entity by its approximate betweenness.
type CentralityScore struct {
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// GraphAnalytics is a transient report of workspace-level graph metrics.
type GraphAnalytics struct {
	WorkspaceID        string               `json:"workspace_id"`
	EntityCount        int                  `json:"entity_count"`
	RelationshipCount  int                  `json:"relationship_count"`
	EntityCounts       map[EntityType]int   `json:"entity_counts"`
	RelationshipCounts map[RelationType]int `json:"relationship_counts"`
	Density            float64              `json:"density"`
	AvgDegree          float64              `json:"avg_degree"`
	Centrality         []CentralityScore    `json:"centrality"`
	Components         [][]string           `json:"components"`
	Clusters           [][]string           `json:"clusters,omitempty"`
	ComputedAt         time.Time            `json:"computed_at"`
}
