package federation

import (
	"strconv"
	"time"

	"github.com/agentic-research/fedgraph/internal/graph"
	"github.com/agentic-research/fedgraph/internal/projection"
	"github.com/agentic-research/fedgraph/internal/request"
)

// Names used by the stored configuration layout:
//
//	<config>
//	  dna:cache          dna:timeToCache, dna:timeToExpire (milliseconds)
//	  dna:projections
//	    <source name>    dna:projectionRules (one value per rule)
const (
	CacheNodeName       = "dna:cache"
	ProjectionsNodeName = "dna:projections"
)

// ReadConfig reads the configuration stored at the repository path at.
func ReadConfig(ctx *graph.ExecutionContext, exec Executor, at graph.Path) (*Config, error) {
	branch := request.NewReadBranch(graph.At(at), 2)
	if err := exec.Execute(ctx, branch); err != nil {
		return nil, err
	}
	if err := branch.Err(); err != nil {
		return nil, ErrConfiguration.Wrap(err, "reading "+at.String())
	}

	var cache graph.CachePolicy
	if n, ok := branch.Node(at.ChildNamed(CacheNodeName)); ok {
		var err error
		if cache, err = readCachePolicy(n.Properties); err != nil {
			return nil, err
		}
	}

	projectionsPath := at.ChildNamed(ProjectionsNodeName)
	list, ok := branch.Node(projectionsPath)
	if !ok {
		return nil, ErrConfiguration.New("missing " + projectionsPath.String())
	}
	projections := make([]*projection.Projection, 0, len(list.Children))
	for _, child := range list.Children {
		n, ok := branch.Node(child.Path())
		if !ok {
			return nil, ErrConfiguration.New("missing projection node " + child.Path().String())
		}
		last, _ := child.Path().Last()
		var texts []string
		found := false
		for _, p := range n.Properties {
			if p.Name == graph.ProjectionRulesProperty {
				texts, found = p.Strings(), true
			}
		}
		if !found {
			return nil, ErrConfiguration.New("missing " + graph.ProjectionRulesProperty + " on " + child.Path().String())
		}
		rules, err := projection.ParseRules(texts)
		if err != nil {
			return nil, err
		}
		projections = append(projections, projection.New(last.Name, cache, rules...))
	}
	return NewConfig(cache, projections...), nil
}

func readCachePolicy(props []graph.Property) (graph.CachePolicy, error) {
	var c graph.CachePolicy
	for _, p := range props {
		var target *time.Duration
		switch p.Name {
		case graph.TimeToCacheProperty:
			target = &c.TimeToCache
		case graph.TimeToExpireProperty:
			target = &c.TimeToExpire
		default:
			continue
		}
		ms, err := millis(p.First())
		if err != nil {
			return c, ErrConfiguration.New(p.Name + ": " + err.Error())
		}
		*target = time.Duration(ms) * time.Millisecond
	}
	return c, nil
}

func millis(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case time.Duration:
		return n.Milliseconds(), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, strconv.ErrSyntax
}

// WriteConfig stores cfg at the repository path at, replacing what was
// there. All nodes are written in one composite request.
func WriteConfig(ctx *graph.ExecutionContext, exec Executor, at graph.Path, cfg *Config) error {
	last, ok := at.Last()
	if !ok {
		return ErrConfiguration.New("the configuration cannot be stored at the root")
	}
	root := request.NewCreateNode(graph.At(at.Parent()), last.Name)
	root.Conflict = request.ReplaceExisting
	reqs := []request.Request{root}

	if c := cfg.CachePolicy(); !c.IsZero() {
		reqs = append(reqs, request.NewCreateNode(graph.At(at), CacheNodeName,
			graph.NewProperty(graph.TimeToCacheProperty, c.TimeToCache.Milliseconds()),
			graph.NewProperty(graph.TimeToExpireProperty, c.TimeToExpire.Milliseconds()),
		))
	}
	reqs = append(reqs, request.NewCreateNode(graph.At(at), ProjectionsNodeName))
	projectionsPath := at.ChildNamed(ProjectionsNodeName)
	for _, p := range cfg.Projections() {
		texts := p.RuleTexts()
		values := make([]any, len(texts))
		for i, t := range texts {
			values[i] = t
		}
		reqs = append(reqs, request.NewCreateNode(graph.At(projectionsPath), p.SourceName(),
			graph.NewProperty(graph.ProjectionRulesProperty, values...)))
	}

	c := request.NewComposite(reqs...)
	if err := exec.Execute(ctx, c); err != nil {
		return err
	}
	return c.Err()
}
