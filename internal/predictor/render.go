package predictor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// #region text

// Render prints the tree one split per line, indented by depth.
func Render(m *Model) string {
	if m.Empty() {
		return "(empty model)\n"
	}
	var b strings.Builder
	if m.root.leaf() {
		fmt.Fprintf(&b, "|--- class: %s\n", m.leafLabel(m.root))
		return b.String()
	}
	m.renderNode(&b, m.root, 0)
	return b.String()
}

func (m *Model) renderNode(b *strings.Builder, n *node, depth int) {
	indent := strings.Repeat("|   ", depth)
	if n.leaf() {
		fmt.Fprintf(b, "%s|--- class: %s\n", indent, m.leafLabel(n))
		return
	}
	name := m.features[n.feature]
	fmt.Fprintf(b, "%s|--- %s <= %.2f\n", indent, name, n.threshold)
	m.renderNode(b, n.left, depth+1)
	fmt.Fprintf(b, "%s|--- %s >  %.2f\n", indent, name, n.threshold)
	m.renderNode(b, n.right, depth+1)
}

func (m *Model) leafLabel(n *node) string {
	best := 0
	for i, c := range n.counts {
		if c > n.counts[best] {
			best = i
		}
	}
	return m.classes[best]
}

// #endregion text

// #region dot

// RenderDOT returns the tree as a Graphviz digraph.
func RenderDOT(m *Model) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("tree"); err != nil {
		return "", fmt.Errorf("dot name: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("dot dir: %w", err)
	}
	if m.Empty() {
		return g.String(), nil
	}

	next := 0
	var add func(n *node) (string, error)
	add = func(n *node) (string, error) {
		id := "n" + strconv.Itoa(next)
		next++

		var label string
		if n.leaf() {
			label = fmt.Sprintf("%s\nsamples = %d", m.leafLabel(n), n.samples)
		} else {
			label = fmt.Sprintf("%s <= %.2f\nsamples = %d", m.features[n.feature], n.threshold, n.samples)
		}
		attrs := map[string]string{
			"label": strconv.Quote(label),
			"shape": "box",
		}
		if err := g.AddNode("tree", id, attrs); err != nil {
			return "", fmt.Errorf("dot node %s: %w", id, err)
		}
		if n.leaf() {
			return id, nil
		}

		for _, edge := range []struct {
			child *node
			label string
		}{{n.left, "true"}, {n.right, "false"}} {
			childID, err := add(edge.child)
			if err != nil {
				return "", err
			}
			if err := g.AddEdge(id, childID, true, map[string]string{"label": strconv.Quote(edge.label)}); err != nil {
				return "", fmt.Errorf("dot edge %s->%s: %w", id, childID, err)
			}
		}
		return id, nil
	}
	if _, err := add(m.root); err != nil {
		return "", err
	}
	return g.String(), nil
}

// #endregion dot
