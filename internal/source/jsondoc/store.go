// Package jsondoc exposes a JSON document as a read-only source.
//
// Objects are nodes. Scalar members become properties, arrays of scalars
// multi-valued properties, object members child nodes and arrays of objects
// same-name siblings. Paths are resolved with JSONPath expressions.
package jsondoc

import (
	"os"
	"slices"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/pkg/errors"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
)

// Store serves an immutable parsed document.
type Store struct {
	doc any
}

// NewStore serves the value selected by rootExpr (a JSONPath such as
// "$.content"; empty selects the whole document).
func NewStore(doc any, rootExpr string) (*Store, error) {
	if rootExpr == "" || rootExpr == "$" {
		return &Store{doc: doc}, nil
	}
	x, err := jp.ParseString(rootExpr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse root expression %q", rootExpr)
	}
	root := x.First(doc)
	if _, ok := root.(map[string]any); !ok {
		return nil, errors.Errorf("root expression %q does not select an object", rootExpr)
	}
	return &Store{doc: root}, nil
}

// Parse parses data and serves the selected root.
func Parse(data []byte, rootExpr string) (*Store, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse json document")
	}
	return NewStore(doc, rootExpr)
}

// Load reads and parses the file at path.
func Load(path, rootExpr string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Parse(data, rootExpr)
}

// NewSource loads the file at path and wraps it as a connector source.
func NewSource(name, path, rootExpr string, opts ...connector.SourceOption) (*connector.StoreSource, error) {
	s, err := Load(path, rootExpr)
	if err != nil {
		return nil, err
	}
	return connector.NewStoreSource(name, s, opts...), nil
}

// Expr returns the JSONPath expression addressing p.
func (s *Store) Expr(p graph.Path) (jp.Expr, bool) {
	x := jp.R()
	for _, seg := range p.Segments() {
		x = x.C(seg.Name)
		switch v := x.First(s.doc).(type) {
		case map[string]any:
			if seg.Index > 1 {
				return nil, false
			}
		case []any:
			if !objects(v) || seg.Index > len(v) {
				return nil, false
			}
			x = x.N(seg.Index - 1)
		default:
			return nil, false
		}
	}
	return x, true
}

// Node implements connector.Store.
func (s *Store) Node(p graph.Path) (*connector.StoredNode, error) {
	x, ok := s.Expr(p)
	if !ok {
		return nil, graph.ErrPathNotFound.New(p, s.lowestExisting(p))
	}
	obj, ok := x.First(s.doc).(map[string]any)
	if !ok {
		return nil, graph.ErrPathNotFound.New(p, s.lowestExisting(p))
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	n := &connector.StoredNode{Path: p}
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
		case map[string]any:
			n.Children = append(n.Children, graph.NewSegment(k))
		case []any:
			if objects(v) {
				for i := range v {
					n.Children = append(n.Children, graph.Segment{Name: k, Index: i + 1})
				}
				continue
			}
			if len(v) > 0 {
				n.Properties = append(n.Properties, graph.NewProperty(k, v...))
			}
		default:
			n.Properties = append(n.Properties, graph.NewProperty(k, v))
		}
	}
	return n, nil
}

func (s *Store) lowestExisting(p graph.Path) graph.Path {
	for i := p.Len() - 1; i > 0; i-- {
		if _, ok := s.Expr(p.Ancestor(i)); ok {
			return p.Ancestor(i)
		}
	}
	return graph.RootPath
}

// objects reports whether a non-empty array holds only objects.
func objects(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, v := range list {
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

var _ connector.Store = (*Store)(nil)
