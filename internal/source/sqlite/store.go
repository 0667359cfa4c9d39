// Package sqlite is a writable source persisted in a SQLite nodes table.
//
// Every node is one row keyed by its UUID. Children are ordered by the pos
// column and same-name siblings are indexed by that order, exactly like the
// in-memory source. Properties are stored as a JSON list.
package sqlite

import (
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/fedgraph/internal/connector"
	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/request"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id        TEXT PRIMARY KEY,
	parent_id TEXT,
	name      TEXT NOT NULL,
	pos       INTEGER NOT NULL,
	props     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_parent_pos ON nodes(parent_id, pos);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store is a SQLite-backed connector.WritableStore.
type Store struct {
	db     *sql.DB
	name   string
	rootID string
	mu     sync.RWMutex
}

// Open opens (creating if needed) the database at dbPath. Use ":memory:" for
// a private in-memory database.
func Open(name, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite source %s", dbPath)
	}
	// One connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set journal mode")
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set synchronous")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create nodes table")
	}

	s := &Store{db: db, name: name}
	if err := s.ensureRoot(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSource opens a store and wraps it as a connector source.
func NewSource(name, dbPath string, opts ...connector.SourceOption) (*connector.StoreSource, *Store, error) {
	s, err := Open(name, dbPath)
	if err != nil {
		return nil, nil, err
	}
	return connector.NewStoreSource(name, s, opts...), s, nil
}

func (s *Store) ensureRoot() error {
	err := s.db.QueryRow("SELECT id FROM nodes WHERE parent_id IS NULL").Scan(&s.rootID)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return errors.Wrap(err, "look up root node")
	}
	s.rootID = uuid.NewString()
	_, err = s.db.Exec("INSERT INTO nodes (id, parent_id, name, pos, props) VALUES (?, NULL, '', 0, '[]')", s.rootID)
	return errors.Wrap(err, "insert root node")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name is the source name the store was opened for.
func (s *Store) Name() string { return s.name }

type row struct {
	id   string
	name string
	pos  int
}

func childRows(q querier, parentID string) ([]row, error) {
	rows, err := q.Query("SELECT id, name, pos FROM nodes WHERE parent_id = ? ORDER BY pos", parentID)
	if err != nil {
		return nil, errors.Wrapf(err, "list children of %s", parentID)
	}
	defer func() { _ = rows.Close() }()

	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.pos); err != nil {
			return nil, errors.Wrap(err, "scan child")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate children")
}

// segments numbers same-name siblings in position order.
func segments(children []row) []graph.Segment {
	seen := map[string]int{}
	out := make([]graph.Segment, len(children))
	for i, c := range children {
		seen[c.name]++
		out[i] = graph.Segment{Name: c.name, Index: seen[c.name]}
	}
	return out
}

// find resolves p to a node id.
func (s *Store) find(q querier, p graph.Path) (string, error) {
	id := s.rootID
	for i := 0; i < p.Len(); i++ {
		seg := p.Segment(i)
		var next string
		err := q.QueryRow(
			"SELECT id FROM nodes WHERE parent_id = ? AND name = ? ORDER BY pos LIMIT 1 OFFSET ?",
			id, seg.Name, seg.Index-1,
		).Scan(&next)
		if err == sql.ErrNoRows {
			return "", graph.ErrPathNotFound.New(p, p.Ancestor(i))
		}
		if err != nil {
			return "", errors.Wrapf(err, "resolve %s", p)
		}
		id = next
	}
	return id, nil
}

func (s *Store) load(q querier, id string, p graph.Path) (*connector.StoredNode, error) {
	var raw string
	if err := q.QueryRow("SELECT props FROM nodes WHERE id = ?", id).Scan(&raw); err != nil {
		return nil, errors.Wrapf(err, "load properties of %s", p)
	}
	props, err := decodeProperties(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode properties of %s", p)
	}
	children, err := childRows(q, id)
	if err != nil {
		return nil, err
	}
	return &connector.StoredNode{Path: p, UUID: id, Properties: props, Children: segments(children)}, nil
}

// Node implements connector.Store.
func (s *Store) Node(p graph.Path) (*connector.StoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, err := s.find(s.db, p)
	if err != nil {
		return nil, err
	}
	return s.load(s.db, id, p)
}

// PathOf implements connector.UUIDResolver.
func (s *Store) PathOf(id string) (graph.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pathOf(s.db, id)
}

func (s *Store) pathOf(q querier, id string) (graph.Path, error) {
	var segs []graph.Segment
	for id != s.rootID {
		var parent sql.NullString
		var name string
		var pos int
		err := q.QueryRow("SELECT parent_id, name, pos FROM nodes WHERE id = ?", id).Scan(&parent, &name, &pos)
		if err == sql.ErrNoRows {
			return graph.Path{}, graph.ErrPathNotFound.New("uuid "+id, "/")
		}
		if err != nil {
			return graph.Path{}, errors.Wrapf(err, "look up node %s", id)
		}
		var earlier int
		if err := q.QueryRow(
			"SELECT count(*) FROM nodes WHERE parent_id = ? AND name = ? AND pos < ?",
			parent.String, name, pos,
		).Scan(&earlier); err != nil {
			return graph.Path{}, errors.Wrapf(err, "index node %s", id)
		}
		segs = append(segs, graph.Segment{Name: name, Index: earlier + 1})
		id = parent.String
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return graph.NewPath(segs...), nil
}

// isAtOrBelow reports whether node id lies in the subtree of ancestor.
func (s *Store) isAtOrBelow(q querier, id, ancestor string) (bool, error) {
	for {
		if id == ancestor {
			return true, nil
		}
		if id == s.rootID {
			return false, nil
		}
		var parent sql.NullString
		if err := q.QueryRow("SELECT parent_id FROM nodes WHERE id = ?", id).Scan(&parent); err != nil {
			return false, errors.Wrapf(err, "look up parent of %s", id)
		}
		id = parent.String
	}
}

// update runs fn in one transaction under the write lock.
func (s *Store) update(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func nextPos(q querier, parentID string) (int, error) {
	var pos sql.NullInt64
	if err := q.QueryRow("SELECT max(pos) FROM nodes WHERE parent_id = ?", parentID).Scan(&pos); err != nil {
		return 0, errors.Wrap(err, "next position")
	}
	if !pos.Valid {
		return 0, nil
	}
	return int(pos.Int64) + 1, nil
}

func insert(q querier, parentID, name string, pos int, props []graph.Property) (string, error) {
	raw, err := encodeProperties(props)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = q.Exec("INSERT INTO nodes (id, parent_id, name, pos, props) VALUES (?, ?, ?, ?, ?)", id, parentID, name, pos, raw)
	return id, errors.Wrapf(err, "insert %s", name)
}

func deleteSubtree(q querier, id string) error {
	_, err := q.Exec(`
		WITH RECURSIVE sub(id) AS (
			SELECT ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN sub ON n.parent_id = sub.id
		)
		DELETE FROM nodes WHERE id IN (SELECT id FROM sub)`, id)
	return errors.Wrapf(err, "delete subtree %s", id)
}

// CreateChild implements connector.WritableStore.
func (s *Store) CreateChild(parent graph.Path, name string, props []graph.Property, conflict request.ConflictBehavior) (*connector.StoredNode, error) {
	var created *connector.StoredNode
	err := s.update(func(tx *sql.Tx) error {
		parentID, err := s.find(tx, parent)
		if err != nil {
			return err
		}
		childPath := parent.ChildNamed(name)
		var existing string
		err = tx.QueryRow("SELECT id FROM nodes WHERE parent_id = ? AND name = ? ORDER BY pos LIMIT 1", parentID, name).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return errors.Wrapf(err, "look up %s", childPath)
		case conflict == request.FailIfExists:
			return graph.ErrNodeExists.New(childPath)
		case conflict == request.DoNotReplace:
			created, err = s.load(tx, existing, childPath)
			return err
		case conflict == request.ReplaceExisting:
			children, err := childRows(tx, existing)
			if err != nil {
				return err
			}
			for _, c := range children {
				if err := deleteSubtree(tx, c.id); err != nil {
					return err
				}
			}
			raw, err := encodeProperties(props)
			if err != nil {
				return err
			}
			if _, err := tx.Exec("UPDATE nodes SET props = ? WHERE id = ?", raw, existing); err != nil {
				return errors.Wrapf(err, "replace %s", childPath)
			}
			created, err = s.load(tx, existing, childPath)
			return err
		}

		pos, err := nextPos(tx, parentID)
		if err != nil {
			return err
		}
		id, err := insert(tx, parentID, name, pos, props)
		if err != nil {
			return err
		}
		p, err := s.pathOf(tx, id)
		if err != nil {
			return err
		}
		created, err = s.load(tx, id, p)
		return err
	})
	return created, err
}

// SetProperties implements connector.WritableStore.
func (s *Store) SetProperties(p graph.Path, props []graph.Property) error {
	return s.editProperties(p, func(bag *graph.Properties) {
		for _, prop := range props {
			if prop.IsEmpty() {
				bag.Remove(prop.Name)
				continue
			}
			bag.Set(prop)
		}
	})
}

// RemoveProperties implements connector.WritableStore.
func (s *Store) RemoveProperties(p graph.Path, names []string) error {
	return s.editProperties(p, func(bag *graph.Properties) {
		for _, name := range names {
			bag.Remove(name)
		}
	})
}

func (s *Store) editProperties(p graph.Path, edit func(*graph.Properties)) error {
	return s.update(func(tx *sql.Tx) error {
		id, err := s.find(tx, p)
		if err != nil {
			return err
		}
		var raw string
		if err := tx.QueryRow("SELECT props FROM nodes WHERE id = ?", id).Scan(&raw); err != nil {
			return errors.Wrapf(err, "load properties of %s", p)
		}
		current, err := decodeProperties(raw)
		if err != nil {
			return errors.Wrapf(err, "decode properties of %s", p)
		}
		bag := graph.NewProperties(current...)
		edit(bag)
		if raw, err = encodeProperties(bag.List()); err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE nodes SET props = ? WHERE id = ?", raw, id)
		return errors.Wrapf(err, "store properties of %s", p)
	})
}

// Move implements connector.WritableStore.
func (s *Store) Move(from, into graph.Path, newName string, before *graph.Path) (graph.Path, error) {
	var moved graph.Path
	err := s.update(func(tx *sql.Tx) error {
		id, err := s.find(tx, from)
		if err != nil {
			return err
		}
		if id == s.rootID {
			return graph.ErrInvalidLocation.New(from, "the root cannot be moved")
		}
		target, err := s.find(tx, into)
		if err != nil {
			return err
		}
		below, err := s.isAtOrBelow(tx, target, id)
		if err != nil {
			return err
		}
		if below {
			return graph.ErrInvalidLocation.New(into, "cannot move "+from.String()+" below itself")
		}

		name, _ := from.Last()
		if newName != "" {
			name.Name = newName
		}
		pos, err := nextPos(tx, target)
		if err != nil {
			return err
		}
		if before != nil {
			anchor, err := s.find(tx, *before)
			if err != nil {
				return err
			}
			var anchorParent string
			if err := tx.QueryRow("SELECT parent_id, pos FROM nodes WHERE id = ?", anchor).Scan(&anchorParent, &pos); err != nil {
				return errors.Wrapf(err, "look up %s", *before)
			}
			if anchorParent != target {
				return graph.ErrInvalidLocation.New(*before, "not a child of "+into.String())
			}
			if _, err := tx.Exec("UPDATE nodes SET pos = pos + 1 WHERE parent_id = ? AND pos >= ?", target, pos); err != nil {
				return errors.Wrap(err, "shift siblings")
			}
		}
		if _, err := tx.Exec("UPDATE nodes SET parent_id = ?, name = ?, pos = ? WHERE id = ?", target, name.Name, pos, id); err != nil {
			return errors.Wrapf(err, "move %s", from)
		}
		moved, err = s.pathOf(tx, id)
		return err
	})
	return moved, err
}

// Copy implements connector.WritableStore.
func (s *Store) Copy(from, into graph.Path, newName string) (graph.Path, error) {
	var copied graph.Path
	err := s.update(func(tx *sql.Tx) error {
		id, err := s.find(tx, from)
		if err != nil {
			return err
		}
		target, err := s.find(tx, into)
		if err != nil {
			return err
		}
		below, err := s.isAtOrBelow(tx, target, id)
		if err != nil {
			return err
		}
		if below {
			return graph.ErrInvalidLocation.New(into, "cannot copy "+from.String()+" below itself")
		}
		name := ""
		if last, ok := from.Last(); ok {
			name = last.Name
		}
		if newName != "" {
			name = newName
		}
		pos, err := nextPos(tx, target)
		if err != nil {
			return err
		}
		copyID, err := s.copyTree(tx, id, target, name, pos)
		if err != nil {
			return err
		}
		copied, err = s.pathOf(tx, copyID)
		return err
	})
	return copied, err
}

func (s *Store) copyTree(tx *sql.Tx, id, parentID, name string, pos int) (string, error) {
	var raw string
	if err := tx.QueryRow("SELECT props FROM nodes WHERE id = ?", id).Scan(&raw); err != nil {
		return "", errors.Wrapf(err, "load node %s", id)
	}
	copyID := uuid.NewString()
	if _, err := tx.Exec("INSERT INTO nodes (id, parent_id, name, pos, props) VALUES (?, ?, ?, ?, ?)", copyID, parentID, name, pos, raw); err != nil {
		return "", errors.Wrapf(err, "copy node %s", id)
	}
	children, err := childRows(tx, id)
	if err != nil {
		return "", err
	}
	for _, c := range children {
		if _, err := s.copyTree(tx, c.id, copyID, c.name, c.pos); err != nil {
			return "", err
		}
	}
	return copyID, nil
}

// Delete implements connector.WritableStore.
func (s *Store) Delete(p graph.Path) error {
	return s.update(func(tx *sql.Tx) error {
		id, err := s.find(tx, p)
		if err != nil {
			return err
		}
		if id == s.rootID {
			return graph.ErrInvalidLocation.New(p, "the root cannot be deleted")
		}
		return deleteSubtree(tx, id)
	})
}

func encodeProperties(props []graph.Property) (string, error) {
	list := make([]any, 0, len(props))
	for _, p := range props {
		list = append(list, map[string]any{"name": p.Name, "values": append([]any(nil), p.Values...)})
	}
	return oj.JSON(list), nil
}

func decodeProperties(raw string) ([]graph.Property, error) {
	v, err := oj.ParseString(raw)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("properties are %T, not a list", v)
	}
	out := make([]graph.Property, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("property entry is %T, not an object", item)
		}
		name, _ := m["name"].(string)
		values, _ := m["values"].([]any)
		out = append(out, graph.NewProperty(name, values...))
	}
	return out, nil
}

var (
	_ connector.WritableStore = (*Store)(nil)
	_ connector.UUIDResolver  = (*Store)(nil)
)
