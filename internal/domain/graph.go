package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// IntermediateSchemaID identifies the serialized graph format.
const IntermediateSchemaID = "https://schemair.dev/schemas/intermediate/v1"

// GraphEntry pairs a node id with its canonical node.
type GraphEntry struct {
	ID   string
	Node CanonicalNode
}

// Graph is an ordered set of canonical nodes keyed by node id.
type Graph struct {
	entries []GraphEntry
	index   map[string]int
}

func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add appends a node. Node ids must be unique.
func (g *Graph) Add(id string, node CanonicalNode) error {
	if _, exists := g.index[id]; exists {
		return fmt.Errorf("duplicate node id %s", id)
	}
	g.index[id] = len(g.entries)
	g.entries = append(g.entries, GraphEntry{ID: id, Node: node})
	return nil
}

func (g *Graph) Len() int {
	return len(g.entries)
}

// Entries returns the nodes in insertion order.
func (g *Graph) Entries() []GraphEntry {
	out := make([]GraphEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

func (g *Graph) Lookup(id string) (CanonicalNode, bool) {
	i, ok := g.index[id]
	if !ok {
		return CanonicalNode{}, false
	}
	return g.entries[i].Node, true
}

// MarshalJSON writes the graph as {"$schema": ..., "schemas": {...}} with
// the schemas object in insertion order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"$schema":`)
	id, _ := json.Marshal(IntermediateSchemaID)
	buf.Write(id)
	buf.WriteString(`,"schemas":{`)
	for i, entry := range g.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.ID)
		if err != nil {
			return nil, err
		}
		node, err := json.Marshal(entry.Node)
		if err != nil {
			return nil, fmt.Errorf("failed to encode node %s: %w", entry.ID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(node)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the format written by MarshalJSON, keeping the order
// of the schemas object.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Schemas json.RawMessage `json:"schemas"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	*g = *NewGraph()
	if len(envelope.Schemas) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(envelope.Schemas))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in schemas object", tok)
		}
		var node CanonicalNode
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("failed to decode node %s: %w", id, err)
		}
		if err := g.Add(id, node); err != nil {
			return err
		}
	}
	return nil
}

// MarshalYAML mirrors MarshalJSON with an ordered mapping.
func (g *Graph) MarshalYAML() (interface{}, error) {
	schemas := &yaml.Node{Kind: yaml.MappingNode}
	for _, entry := range g.entries {
		var value yaml.Node
		if err := value.Encode(entry.Node); err != nil {
			return nil, fmt.Errorf("failed to encode node %s: %w", entry.ID, err)
		}
		schemas.Content = append(schemas.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: entry.ID},
			&value,
		)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "$schema"},
			{Kind: yaml.ScalarNode, Value: IntermediateSchemaID},
			{Kind: yaml.ScalarNode, Value: "schemas"},
			schemas,
		},
	}, nil
}
