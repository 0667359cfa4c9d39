// Package billyfs exposes a billy.Filesystem as a read-only source.
// Directories become nt:folder nodes and files nt:file nodes whose content,
// when small enough, is carried in jcr:data.
package billyfs

import (
	"os"
	"path"
	"slices"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
)

const (
	FolderType = "nt:folder"
	FileType   = "nt:file"

	LastModifiedProperty = "jcr:lastModified"
	DataProperty         = "jcr:data"
)

// DefaultMaxContent is the largest file whose bytes are returned as jcr:data.
const DefaultMaxContent = 64 << 10

// Store reads nodes straight from the filesystem on every call.
type Store struct {
	fs         billy.Filesystem
	maxContent int64
}

// NewStore serves fs. When root is not empty the store is confined to it.
func NewStore(fs billy.Filesystem, root string) *Store {
	if root != "" && root != "/" {
		fs = chroot.New(fs, root)
	}
	return &Store{fs: fs, maxContent: DefaultMaxContent}
}

// NewSource serves the host directory dir as a source.
func NewSource(name, dir string, opts ...connector.SourceOption) *connector.StoreSource {
	return connector.NewStoreSource(name, NewStore(osfs.New(dir), ""), opts...)
}

// WithMaxContent changes the jcr:data size limit. Zero disables content.
func (s *Store) WithMaxContent(n int64) *Store {
	s.maxContent = n
	return s
}

func fsPath(p graph.Path) (string, bool) {
	parts := make([]string, 0, p.Len())
	for _, seg := range p.Segments() {
		if seg.Index > 1 {
			return "", false
		}
		parts = append(parts, seg.Name)
	}
	return "/" + strings.Join(parts, "/"), true
}

// usable filters out file names that cannot be path segments.
func usable(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "[]*|")
}

func lowestExisting(fs billy.Filesystem, p graph.Path) graph.Path {
	for i := p.Len() - 1; i > 0; i-- {
		a := p.Ancestor(i)
		if name, ok := fsPath(a); ok {
			if _, err := fs.Stat(name); err == nil {
				return a
			}
		}
	}
	return graph.RootPath
}

// Node implements connector.Store.
func (s *Store) Node(p graph.Path) (*connector.StoredNode, error) {
	name, ok := fsPath(p)
	if !ok {
		return nil, graph.ErrPathNotFound.New(p, lowestExisting(s.fs, p))
	}
	info, err := s.fs.Stat(name)
	if os.IsNotExist(err) {
		if p.IsRoot() {
			// an empty in-memory filesystem has no root entry yet
			return &connector.StoredNode{
				Path:       p,
				Properties: []graph.Property{graph.NewProperty(graph.PrimaryTypeProperty, FolderType)},
			}, nil
		}
		return nil, graph.ErrPathNotFound.New(p, lowestExisting(s.fs, p))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", name)
	}

	n := &connector.StoredNode{Path: p}
	if !info.IsDir() {
		n.Properties = []graph.Property{
			graph.NewProperty(graph.PrimaryTypeProperty, FileType),
			graph.NewProperty(LastModifiedProperty, info.ModTime()),
		}
		if info.Size() <= s.maxContent {
			data, err := util.ReadFile(s.fs, name)
			if err != nil {
				return nil, errors.Wrapf(err, "read %s", name)
			}
			n.Properties = append(n.Properties, graph.NewProperty(DataProperty, string(data)))
		}
		return n, nil
	}

	n.Properties = []graph.Property{
		graph.NewProperty(graph.PrimaryTypeProperty, FolderType),
		graph.NewProperty(LastModifiedProperty, info.ModTime()),
	}
	entries, err := s.fs.ReadDir(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", name)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if usable(e.Name()) {
			names = append(names, path.Base(e.Name()))
		}
	}
	slices.Sort(names)
	for _, child := range names {
		n.Children = append(n.Children, graph.NewSegment(child))
	}
	return n, nil
}

var _ connector.Store = (*Store)(nil)
