// Package marketgraph is a multi-tenant knowledge graph engine for
// marketing intelligence. It stores typed entities (companies, ICPs,
// competitors, channels, pain points) and weighted relationships
// between them, isolated per workspace, and answers structural
// questions over the graph: paths, bounded subgraphs, declarative
// pattern matches, and workspace-level analytics.
//
// The Client facade bundles the store, query engine, and analyzer over
// a pluggable persistence backend (in-memory, Badger, or Neo4j) and an
// optional embedding provider for semantic queries.
package marketgraph
