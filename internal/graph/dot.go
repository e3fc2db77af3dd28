package graph

import (
	"fmt"
	"strings"
)

// Dot renders the graph as Graphviz text, useful when debugging
// transformation and fusion passes.
func (g *Graph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph weft {\n")
	b.WriteString("  rankdir=BT;\n")
	for _, n := range g.nodes {
		label := n.Kind.String()
		switch n.Kind {
		case OpConstant:
			if n.Attrs.Lit != nil && n.Attrs.Lit.Shape.IsScalar() {
				label = fmt.Sprintf("const %g", n.Attrs.Lit.Item())
			}
		case OpFused:
			kinds := make([]string, len(n.Attrs.Steps))
			for i, s := range n.Attrs.Steps {
				kinds[i] = s.Kind.String()
			}
			label = "fused{" + strings.Join(kinds, ";") + "}"
		}
		shape := "ellipse"
		if n.Kind == OpParam {
			shape = "box"
		}
		if g.IsOutput(n.ID) {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "  n%d [label=%q shape=%s];\n", n.ID, fmt.Sprintf("%s\\n%s%v", label, n.DType, n.Shape), shape)
		for _, in := range n.Inputs {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", in, n.ID)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
