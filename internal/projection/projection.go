package projection

import (
	"github.com/agentic-research/fedgraph/internal/graph"
)

// BootstrapRule mounts a configuration source's root at /dna:system.
const BootstrapRule = "/dna:system => /"

// Projection binds one source to an ordered list of rules. It is immutable:
// a configuration change produces a new Projection.
type Projection struct {
	sourceName string
	rules      []*Rule
	cache      graph.CachePolicy
}

// New builds a projection. A projection with no rules is legal and maps
// nothing.
func New(sourceName string, cache graph.CachePolicy, rules ...*Rule) *Projection {
	rs := make([]*Rule, len(rules))
	copy(rs, rules)
	return &Projection{sourceName: sourceName, rules: rs, cache: cache}
}

// Parse builds a projection from rule text.
func Parse(sourceName string, texts ...string) (*Projection, error) {
	rules, err := ParseRules(texts)
	if err != nil {
		return nil, err
	}
	return New(sourceName, graph.CachePolicy{}, rules...), nil
}

// MustParse is Parse for literals.
func MustParse(sourceName string, texts ...string) *Projection {
	p, err := Parse(sourceName, texts...)
	if err != nil {
		panic(err)
	}
	return p
}

// SourceName names the source whose content is projected.
func (p *Projection) SourceName() string { return p.sourceName }

// Rules returns the rules in declaration order.
func (p *Projection) Rules() []*Rule {
	out := make([]*Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// RuleTexts renders the rules in declaration order.
func (p *Projection) RuleTexts() []string {
	out := make([]string, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.String()
	}
	return out
}

// CachePolicy returns the projection's cache hint.
func (p *Projection) CachePolicy() graph.CachePolicy { return p.cache }

// WithCachePolicy returns a copy with another cache hint.
func (p *Projection) WithCachePolicy(c graph.CachePolicy) *Projection {
	return New(p.sourceName, c, p.rules...)
}

// IsEmpty reports whether the projection has no rules.
func (p *Projection) IsEmpty() bool { return len(p.rules) == 0 }

// IsSimple reports whether the projection has exactly one rule.
func (p *Projection) IsSimple() bool { return len(p.rules) == 1 }

// ToSource translates with the first rule that matches.
func (p *Projection) ToSource(repoPath graph.Path) (graph.Path, bool) {
	for _, r := range p.rules {
		if src, ok := r.ToSource(repoPath); ok {
			return src, true
		}
	}
	return graph.Path{}, false
}

// ToRepository translates with the first rule that matches.
func (p *Projection) ToRepository(sourcePath graph.Path) (graph.Path, bool) {
	for _, r := range p.rules {
		if repo, ok := r.ToRepository(sourcePath); ok {
			return repo, true
		}
	}
	return graph.Path{}, false
}

// IsPlaceholder reports whether repoPath lies above one of the mount points.
func (p *Projection) IsPlaceholder(repoPath graph.Path) bool {
	for _, r := range p.rules {
		if r.IsAbove(repoPath) {
			return true
		}
	}
	return false
}

// PlaceholderChildren returns, in rule order and without duplicates, the
// segments under repoPath that lead to this projection's mount points.
func (p *Projection) PlaceholderChildren(repoPath graph.Path) []graph.Segment {
	var out []graph.Segment
	for _, r := range p.rules {
		seg, ok := r.NextSegmentBelow(repoPath)
		if !ok {
			continue
		}
		dup := false
		for _, s := range out {
			if s.Compare(seg) == 0 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, seg)
		}
	}
	return out
}

func (p *Projection) String() string {
	return p.sourceName + p.rulesString()
}

func (p *Projection) rulesString() string {
	s := " ["
	for i, r := range p.rules {
		if i > 0 {
			s += "; "
		}
		s += r.String()
	}
	return s + "]"
}
