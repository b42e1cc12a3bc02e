// Package types defines the core data model of the marketgraph engine:
// workspace-scoped entities and relationships, the closed entity and
// relation type sets, traversal result types, and the shared error
// taxonomy. All other packages depend on this one and it depends on
// nothing but the standard library.
package types
