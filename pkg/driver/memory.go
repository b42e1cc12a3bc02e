package driver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// MemoryDriver is an in-process GraphDriver backed by maps. It is the
// test adapter: fully deterministic, no external dependencies. Safe for
// concurrent use.
type MemoryDriver struct {
	mu sync.RWMutex

	// workspace -> id -> record
	entities      map[string]map[string]*types.GraphEntity
	relationships map[string]map[string]*types.GraphRelationship

	// insertion sequence per record id, used to break creation-time ties
	// so listing order stays deterministic.
	seq     map[string]uint64
	nextSeq uint64
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		entities:      make(map[string]map[string]*types.GraphEntity),
		relationships: make(map[string]map[string]*types.GraphRelationship),
		seq:           make(map[string]uint64),
	}
}

func (m *MemoryDriver) PutEntity(ctx context.Context, entity *types.GraphEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.entities[entity.WorkspaceID]
	if ws == nil {
		ws = make(map[string]*types.GraphEntity)
		m.entities[entity.WorkspaceID] = ws
	}
	if _, exists := ws[entity.ID]; !exists {
		m.nextSeq++
		m.seq[entity.ID] = m.nextSeq
	}
	ws[entity.ID] = copyEntity(entity)
	return nil
}

func (m *MemoryDriver) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entity, ok := m.entities[workspaceID][id]
	if !ok {
		return nil, nil
	}
	return copyEntity(entity), nil
}

func (m *MemoryDriver) DeleteEntity(ctx context.Context, workspaceID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entities[workspaceID], id)
	return nil
}

func (m *MemoryDriver) QueryEntities(ctx context.Context, workspaceID string, query EntityQuery) ([]*types.GraphEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pattern := strings.ToLower(query.NamePattern)
	var result []*types.GraphEntity
	for _, entity := range m.entities[workspaceID] {
		if query.Type != nil && entity.Type != *query.Type {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(entity.Name), pattern) {
			continue
		}
		result = append(result, copyEntity(entity))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return m.seq[result[i].ID] < m.seq[result[j].ID]
	})

	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func (m *MemoryDriver) PutRelationship(ctx context.Context, rel *types.GraphRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.relationships[rel.WorkspaceID]
	if ws == nil {
		ws = make(map[string]*types.GraphRelationship)
		m.relationships[rel.WorkspaceID] = ws
	}
	if _, exists := ws[rel.ID]; !exists {
		m.nextSeq++
		m.seq[rel.ID] = m.nextSeq
	}
	ws[rel.ID] = copyRelationship(rel)
	return nil
}

func (m *MemoryDriver) GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.relationships[workspaceID][id]
	if !ok {
		return nil, nil
	}
	return copyRelationship(rel), nil
}

func (m *MemoryDriver) DeleteRelationship(ctx context.Context, workspaceID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.relationships[workspaceID], id)
	return nil
}

func (m *MemoryDriver) QueryRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*types.GraphRelationship
	for _, rel := range m.relationships[workspaceID] {
		switch direction {
		case types.DirectionOut:
			if rel.SourceID != entityID {
				continue
			}
		case types.DirectionIn:
			if rel.TargetID != entityID {
				continue
			}
		default:
			if rel.SourceID != entityID && rel.TargetID != entityID {
				continue
			}
		}
		result = append(result, copyRelationship(rel))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return m.seq[result[i].ID] < m.seq[result[j].ID]
	})
	return result, nil
}

// EntityExists implements GlobalProber by scanning every workspace.
func (m *MemoryDriver) EntityExists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ws := range m.entities {
		if _, ok := ws[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryDriver) Provider() GraphProvider {
	return GraphProviderMemory
}

func (m *MemoryDriver) Close(ctx context.Context) error {
	return nil
}

// copyEntity returns a deep copy so callers never share mutable state
// with the store's maps.
func copyEntity(e *types.GraphEntity) *types.GraphEntity {
	out := *e
	if e.Properties != nil {
		out.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			out.Properties[k] = v
		}
	}
	if e.Embedding != nil {
		out.Embedding = make([]float32, len(e.Embedding))
		copy(out.Embedding, e.Embedding)
	}
	return &out
}

func copyRelationship(r *types.GraphRelationship) *types.GraphRelationship {
	out := *r
	if r.Properties != nil {
		out.Properties = make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}
