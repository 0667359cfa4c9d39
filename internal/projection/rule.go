// Package projection parses and evaluates the path rules that mount a
// source's content tree into the federated namespace.
//
// Rule text has the form
//
//	<repositoryPath> => <sourcePath> [$ <exceptionSourcePath>]...
//
// so "/dna:system => /" mounts the root of a source at /dna:system.
package projection

import (
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/agentic-research/fedgraph/internal/graph"
)

// ErrInvalidRule names the rule text that failed to parse and why.
var ErrInvalidRule = errors.NewKind("invalid projection rule %q: %s")

const (
	ruleArrow     = "=>"
	exceptionMark = "$"
)

// Rule maps a subtree of a source onto a subtree of the repository.
// Rules are immutable and safe to share.
type Rule struct {
	repositoryPath graph.Path
	sourcePath     graph.Path
	exceptions     []graph.Path // source-side paths excluded from the mapping
}

// NewRule builds a rule from already-parsed paths.
func NewRule(repositoryPath, sourcePath graph.Path, exceptions ...graph.Path) (*Rule, error) {
	r := &Rule{repositoryPath: repositoryPath, sourcePath: sourcePath}
	for _, e := range exceptions {
		if !sourcePath.IsAncestorOf(e) {
			return nil, ErrInvalidRule.New(r.String()+" $ "+e.String(), "exception must lie below the source path")
		}
		r.exceptions = append(r.exceptions, e)
	}
	return r, nil
}

// ParseRule compiles rule text. The error names the offending expression.
func ParseRule(text string) (*Rule, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrInvalidRule.New(text, "empty rule")
	}
	parts := strings.Split(trimmed, ruleArrow)
	if len(parts) != 2 {
		return nil, ErrInvalidRule.New(text, "expected exactly one '=>'")
	}
	repoText := strings.TrimSpace(parts[0])
	rest := strings.Split(parts[1], exceptionMark)
	sourceText := strings.TrimSpace(rest[0])

	repoPath, err := graph.ParsePath(repoText)
	if err != nil {
		return nil, ErrInvalidRule.New(text, "repository path: "+err.Error())
	}
	sourcePath, err := graph.ParsePath(sourceText)
	if err != nil {
		return nil, ErrInvalidRule.New(text, "source path: "+err.Error())
	}

	var exceptions []graph.Path
	for _, raw := range rest[1:] {
		exText := strings.TrimSpace(raw)
		ex, err := graph.ParsePath(exText)
		if err != nil {
			return nil, ErrInvalidRule.New(text, "exception: "+err.Error())
		}
		if !sourcePath.IsAncestorOf(ex) {
			return nil, ErrInvalidRule.New(text, "exception "+exText+" must lie below "+sourcePath.String())
		}
		exceptions = append(exceptions, ex)
	}
	return &Rule{repositoryPath: repoPath, sourcePath: sourcePath, exceptions: exceptions}, nil
}

// ParseRules compiles every entry, failing on the first bad one.
func ParseRules(texts []string) ([]*Rule, error) {
	out := make([]*Rule, 0, len(texts))
	for _, t := range texts {
		r, err := ParseRule(t)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RepositoryPath is where the rule mounts content in the repository.
func (r *Rule) RepositoryPath() graph.Path { return r.repositoryPath }

// SourcePath is the subtree of the source that is mounted.
func (r *Rule) SourcePath() graph.Path { return r.sourcePath }

// Exceptions returns the excluded source paths.
func (r *Rule) Exceptions() []graph.Path {
	out := make([]graph.Path, len(r.exceptions))
	copy(out, r.exceptions)
	return out
}

// ToSource translates a repository path into the source namespace.
func (r *Rule) ToSource(repoPath graph.Path) (graph.Path, bool) {
	rel, ok := repoPath.RelativeTo(r.repositoryPath)
	if !ok {
		return graph.Path{}, false
	}
	src := r.sourcePath.Append(rel)
	if r.isExcluded(src) {
		return graph.Path{}, false
	}
	return src, true
}

// ToRepository translates a source path into the repository namespace.
func (r *Rule) ToRepository(sourcePath graph.Path) (graph.Path, bool) {
	if r.isExcluded(sourcePath) {
		return graph.Path{}, false
	}
	rel, ok := sourcePath.RelativeTo(r.sourcePath)
	if !ok {
		return graph.Path{}, false
	}
	return r.repositoryPath.Append(rel), true
}

// IsAbove reports whether repoPath is a strict ancestor of the mount point,
// i.e. a position the federated view must fill with a placeholder.
func (r *Rule) IsAbove(repoPath graph.Path) bool {
	return repoPath.IsAncestorOf(r.repositoryPath)
}

// NextSegmentBelow returns the segment under repoPath that leads towards the
// mount point. ok is false unless IsAbove(repoPath).
func (r *Rule) NextSegmentBelow(repoPath graph.Path) (graph.Segment, bool) {
	if !r.IsAbove(repoPath) {
		return graph.Segment{}, false
	}
	return r.repositoryPath.Segment(repoPath.Len()), true
}

func (r *Rule) isExcluded(sourcePath graph.Path) bool {
	for _, e := range r.exceptions {
		if sourcePath.IsAtOrBelow(e) {
			return true
		}
	}
	return false
}

// String renders the rule in its canonical text form.
func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString(r.repositoryPath.String())
	b.WriteString(" => ")
	b.WriteString(r.sourcePath.String())
	for _, e := range r.exceptions {
		b.WriteString(" $ ")
		b.WriteString(e.String())
	}
	return b.String()
}
