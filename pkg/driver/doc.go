// Package driver provides persistence backend adapters for the
// marketgraph engine.
//
// The GraphDriver interface is the single seam between the engine and
// storage. Three adapters implement it: MemoryDriver (in-process maps,
// used in tests), BadgerDriver (embedded key-value storage for local
// single-node deployments), and Neo4jDriver (the production graph
// database adapter). BreakerDriver decorates any of them with a circuit
// breaker that converts sustained backend failures into
// types.ErrBackendUnavailable.
package driver
