package arena

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/cespare/xxhash/v2"

	"github.com/i2y/schemair/internal/domain"
)

// SyntheticDocument is the document URL used for ids of nodes created
// during normalization.
const SyntheticDocument = "urn:schemair:synthetic"

// Key addresses a node in an Arena.
type Key int

// Node is a canonical node whose references are arena keys.
type Node = domain.Node[Key]

// Transform rewrites one node. It receives the node as it was when the pass
// started and returns its replacement, which may equal the input.
type Transform func(a *Arena, key Key, node Node) (Node, error)

// Arena is an append-only store of canonical nodes. Nodes may be replaced
// but never removed, so keys stay valid for the arena's lifetime.
type Arena struct {
	nodes     []Node
	ids       []string
	synthetic []bool
	interned  map[uint64][]Key
	internFP  map[Key][]byte
}

func New() *Arena {
	return &Arena{
		interned: make(map[uint64][]Key),
		internFP: make(map[Key][]byte),
	}
}

// FromGraph loads an intermediate graph. Keys follow the graph order.
func FromGraph(g *domain.Graph) (*Arena, error) {
	a := New()
	entries := g.Entries()
	index := make(map[string]Key, len(entries))
	for i, entry := range entries {
		index[entry.ID] = Key(i)
	}
	for _, entry := range entries {
		node, err := domain.MapReferences(entry.Node, func(id string) (Key, error) {
			k, ok := index[id]
			if !ok {
				return 0, &domain.UnknownNodeError{Location: id}
			}
			return k, nil
		})
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", entry.ID, err)
		}
		a.add(entry.ID, node, false)
	}
	return a, nil
}

func (a *Arena) add(id string, node Node, synthetic bool) Key {
	key := Key(len(a.nodes))
	if id == "" {
		id = fmt.Sprintf("%s#/%d", SyntheticDocument, key)
	}
	a.nodes = append(a.nodes, node.Clone())
	a.ids = append(a.ids, id)
	a.synthetic = append(a.synthetic, synthetic)
	return key
}

// Append adds a node and returns its key.
func (a *Arena) Append(node Node) Key {
	return a.add("", node, true)
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

// Get returns a copy of the node at key.
func (a *Arena) Get(key Key) (Node, error) {
	if key < 0 || int(key) >= len(a.nodes) {
		return Node{}, &domain.UnknownNodeError{Location: fmt.Sprintf("arena key %d", key)}
	}
	return a.nodes[key].Clone(), nil
}

// ID returns the node id of key, or "" when key is unknown.
func (a *Arena) ID(key Key) string {
	if key < 0 || int(key) >= len(a.ids) {
		return ""
	}
	return a.ids[key]
}

// IsSynthetic reports whether key was created during normalization.
func (a *Arena) IsSynthetic(key Key) bool {
	return key >= 0 && int(key) < len(a.synthetic) && a.synthetic[key]
}

// Snapshot iterates the nodes present when it is called. Nodes appended
// during iteration are not visited and every yielded node is a copy.
func (a *Arena) Snapshot() iter.Seq2[Key, Node] {
	nodes := make([]Node, len(a.nodes))
	for i, n := range a.nodes {
		nodes[i] = n.Clone()
	}
	return func(yield func(Key, Node) bool) {
		for i, n := range nodes {
			if !yield(Key(i), n) {
				return
			}
		}
	}
}

// ApplyTransform runs t once over a snapshot and stores every node whose
// content changed. It returns the number of changed nodes.
func (a *Arena) ApplyTransform(t Transform) (int, error) {
	changed := 0
	for key, node := range a.Snapshot() {
		before := Fingerprint(a.nodes[key])
		next, err := t(a, key, node)
		if err != nil {
			return changed, fmt.Errorf("transform failed at %s: %w", a.ids[key], err)
		}
		if !bytes.Equal(before, Fingerprint(next)) {
			a.nodes[key] = next.Clone()
			changed++
		}
	}
	return changed, nil
}

// Intern returns the key of a synthesized node structurally equal to node,
// appending node when there is none. Original nodes are never matched. The
// recorded content is the one seen at intern time, so later rewrites of an
// interned node do not change what it matches.
func (a *Arena) Intern(node Node) Key {
	fp := Fingerprint(node)
	h := xxhash.Sum64(fp)
	for _, key := range a.interned[h] {
		if bytes.Equal(a.internFP[key], fp) {
			return key
		}
	}
	key := a.Append(node)
	a.interned[h] = append(a.interned[h], key)
	a.internFP[key] = fp
	return key
}

// Graph exports the arena with node ids in key order.
func (a *Arena) Graph() (*domain.Graph, error) {
	g := domain.NewGraph()
	for i, n := range a.nodes {
		node, err := domain.MapReferences(n, func(k Key) (string, error) {
			id := a.ID(k)
			if id == "" {
				return "", &domain.UnknownNodeError{Location: fmt.Sprintf("arena key %d", k)}
			}
			return id, nil
		})
		if err != nil {
			return nil, err
		}
		if err := g.Add(a.ids[i], node); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Fingerprint is a canonical encoding of the full node content.
func Fingerprint(n Node) []byte {
	data, err := json.Marshal(n)
	if err != nil {
		return []byte(fmt.Sprintf("%#v", n))
	}
	return data
}

// ShapeFingerprint encodes a node without metadata and exactness, so nodes
// that validate the same values compare equal.
func ShapeFingerprint(n Node) []byte {
	shape := n
	shape.Exact = false
	shape.Metadata = domain.Metadata{}
	return Fingerprint(shape)
}
