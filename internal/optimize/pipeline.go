// Package optimize rewrites computation graphs before execution.
//
// Every pass is a whole-graph rewrite: it builds a fresh graph from the
// old one, so the append-only id ordering invariant holds on the result
// by construction. Passes are value-preserving and individually
// non-fatal: a pass that fails is skipped with a warning and the
// pipeline continues from the last good graph.
package optimize

import (
	"github.com/hashicorp/go-hclog"

	"github.com/weft-ml/weft/internal/graph"
)

// Pass is one named graph-to-graph rewrite.
type Pass struct {
	Name string
	Run  func(g *graph.Graph) (*graph.Graph, error)
}

// Pipeline applies a fixed sequence of passes.
type Pipeline struct {
	passes []Pass
	log    hclog.Logger
}

// New returns the standard pipeline: constant folding, algebraic
// simplification, common-subexpression elimination, dead-code
// elimination, then elementwise fusion.
func New(log hclog.Logger) *Pipeline {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Pipeline{
		log: log,
		passes: []Pass{
			{Name: "constant-fold", Run: Fold},
			{Name: "algebra", Run: Simplify},
			{Name: "cse", Run: CSE},
			{Name: "dce", Run: DCE},
			{Name: "fuse", Run: Fuse},
		},
	}
}

// Run applies the passes in order. A failing pass logs a warning and is
// skipped; optimization never turns a valid graph into an error.
func (p *Pipeline) Run(g *graph.Graph) *graph.Graph {
	for _, pass := range p.passes {
		next, err := pass.Run(g)
		if err != nil {
			p.log.Warn("optimization pass failed, skipping", "pass", pass.Name, "error", err)
			continue
		}
		if next.NumNodes() != g.NumNodes() {
			p.log.Debug("optimization pass applied",
				"pass", pass.Name, "before", g.NumNodes(), "after", next.NumNodes())
		}
		g = next
	}
	return g
}
