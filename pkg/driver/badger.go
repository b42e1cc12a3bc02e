package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marketgraph/marketgraph/pkg/types"
)

// BadgerDriver implements GraphDriver on an embedded Badger key-value
// store. It is the local single-node backend: no server process, data
// lives in a directory on disk.
//
// Key layout:
//
//	ent|<workspace>|<id>                  -> JSON entity
//	rel|<workspace>|<id>                  -> JSON relationship
//	adj|<workspace>|out|<entity>|<relID>  -> relID
//	adj|<workspace>|in|<entity>|<relID>   -> relID
//
// The adjacency keys make incident-relationship listing a prefix scan
// instead of a full workspace scan.
type BadgerDriver struct {
	db *badger.DB
}

// NewBadgerDriver opens (or creates) a Badger database at path.
// An empty path opens an in-memory instance.
func NewBadgerDriver(path string) (*BadgerDriver, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerDriver{db: db}, nil
}

func entityKey(workspaceID, id string) []byte {
	return []byte("ent|" + workspaceID + "|" + id)
}

func relationshipKey(workspaceID, id string) []byte {
	return []byte("rel|" + workspaceID + "|" + id)
}

func adjacencyKey(workspaceID, direction, entityID, relID string) []byte {
	return []byte("adj|" + workspaceID + "|" + direction + "|" + entityID + "|" + relID)
}

func (b *BadgerDriver) PutEntity(ctx context.Context, entity *types.GraphEntity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entityKey(entity.WorkspaceID, entity.ID), data)
	})
	if err != nil {
		return wrapBackend("badger put entity", err)
	}
	return nil
}

func (b *BadgerDriver) GetEntity(ctx context.Context, workspaceID, id string) (*types.GraphEntity, error) {
	var entity *types.GraphEntity
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(workspaceID, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entity = &types.GraphEntity{}
			return json.Unmarshal(val, entity)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend("badger get entity", err)
	}
	return entity, nil
}

func (b *BadgerDriver) DeleteEntity(ctx context.Context, workspaceID, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entityKey(workspaceID, id))
	})
	if err != nil {
		return wrapBackend("badger delete entity", err)
	}
	return nil
}

func (b *BadgerDriver) QueryEntities(ctx context.Context, workspaceID string, query EntityQuery) ([]*types.GraphEntity, error) {
	pattern := strings.ToLower(query.NamePattern)
	var entities []*types.GraphEntity

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("ent|" + workspaceID + "|")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				entity := &types.GraphEntity{}
				if err := json.Unmarshal(val, entity); err != nil {
					return err
				}
				if query.Type != nil && entity.Type != *query.Type {
					return nil
				}
				if pattern != "" && !strings.Contains(strings.ToLower(entity.Name), pattern) {
					return nil
				}
				entities = append(entities, entity)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapBackend("badger query entities", err)
	}

	sort.Slice(entities, func(i, j int) bool {
		if !entities[i].CreatedAt.Equal(entities[j].CreatedAt) {
			return entities[i].CreatedAt.Before(entities[j].CreatedAt)
		}
		return entities[i].ID < entities[j].ID
	})
	if query.Limit > 0 && len(entities) > query.Limit {
		entities = entities[:query.Limit]
	}
	return entities, nil
}

func (b *BadgerDriver) PutRelationship(ctx context.Context, rel *types.GraphRelationship) error {
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(relationshipKey(rel.WorkspaceID, rel.ID), data); err != nil {
			return err
		}
		if err := txn.Set(adjacencyKey(rel.WorkspaceID, "out", rel.SourceID, rel.ID), []byte(rel.ID)); err != nil {
			return err
		}
		return txn.Set(adjacencyKey(rel.WorkspaceID, "in", rel.TargetID, rel.ID), []byte(rel.ID))
	})
	if err != nil {
		return wrapBackend("badger put relationship", err)
	}
	return nil
}

func (b *BadgerDriver) GetRelationship(ctx context.Context, workspaceID, id string) (*types.GraphRelationship, error) {
	var rel *types.GraphRelationship
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(relationshipKey(workspaceID, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rel = &types.GraphRelationship{}
			return json.Unmarshal(val, rel)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend("badger get relationship", err)
	}
	return rel, nil
}

func (b *BadgerDriver) DeleteRelationship(ctx context.Context, workspaceID, id string) error {
	rel, err := b.GetRelationship(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	if rel == nil {
		return nil
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(relationshipKey(workspaceID, id)); err != nil {
			return err
		}
		if err := txn.Delete(adjacencyKey(workspaceID, "out", rel.SourceID, id)); err != nil {
			return err
		}
		return txn.Delete(adjacencyKey(workspaceID, "in", rel.TargetID, id))
	})
	if err != nil {
		return wrapBackend("badger delete relationship", err)
	}
	return nil
}

func (b *BadgerDriver) QueryRelationships(ctx context.Context, workspaceID, entityID string, direction types.Direction) ([]*types.GraphRelationship, error) {
	var prefixes [][]byte
	switch direction {
	case types.DirectionOut:
		prefixes = [][]byte{adjacencyKey(workspaceID, "out", entityID, "")}
	case types.DirectionIn:
		prefixes = [][]byte{adjacencyKey(workspaceID, "in", entityID, "")}
	default:
		prefixes = [][]byte{
			adjacencyKey(workspaceID, "out", entityID, ""),
			adjacencyKey(workspaceID, "in", entityID, ""),
		}
	}

	seen := make(map[string]bool)
	var rels []*types.GraphRelationship

	err := b.db.View(func(txn *badger.Txn) error {
		for _, prefix := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)

			for it.Rewind(); it.Valid(); it.Next() {
				var relID string
				err := it.Item().Value(func(val []byte) error {
					relID = string(val)
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}
				if seen[relID] {
					continue
				}
				seen[relID] = true

				item, err := txn.Get(relationshipKey(workspaceID, relID))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					it.Close()
					return err
				}
				err = item.Value(func(val []byte) error {
					rel := &types.GraphRelationship{}
					if err := json.Unmarshal(val, rel); err != nil {
						return err
					}
					rels = append(rels, rel)
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, wrapBackend("badger query relationships", err)
	}

	sort.Slice(rels, func(i, j int) bool {
		if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].CreatedAt.Before(rels[j].CreatedAt)
		}
		return rels[i].ID < rels[j].ID
	})
	return rels, nil
}

// EntityExists implements GlobalProber with a scan over the entity
// keyspace across all workspaces.
func (b *BadgerDriver) EntityExists(ctx context.Context, id string) (bool, error) {
	suffix := []byte("|" + id)
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("ent|")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) >= len(suffix) && string(key[len(key)-len(suffix):]) == string(suffix) {
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, wrapBackend("badger entity exists", err)
	}
	return found, nil
}

func (b *BadgerDriver) Provider() GraphProvider {
	return GraphProviderBadger
}

func (b *BadgerDriver) Close(ctx context.Context) error {
	return b.db.Close()
}
