package types

// NodeLinkGraph is the generic node-link export format consumed by
// downstream reporting and visualization layers. It is plain data with
// no dependency on any particular visualization library.
type NodeLinkGraph struct {
	Nodes []NodeLinkNode `json:"nodes" yaml:"nodes"`
	Links []NodeLinkEdge `json:"links" yaml:"links"`
}

// NodeLinkNode is one exported graph node.
type NodeLinkNode struct {
	ID         string         `json:"id" yaml:"id"`
	Label      string         `json:"label" yaml:"label"`
	Type       string         `json:"type" yaml:"type"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// NodeLinkEdge is one exported graph link.
type NodeLinkEdge struct {
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Type       string         `json:"type" yaml:"type"`
	Weight     float64        `json:"weight" yaml:"weight"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}
