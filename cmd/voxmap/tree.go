package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
)

// printTree renders the map as an indented tree, siblings in creation order.
func printTree(w io.Writer, m mindmap.Map, nodes []mindmap.Node) error {
	children := make(map[string][]mindmap.Node, len(nodes))
	var root *mindmap.Node
	for i := range nodes {
		n := nodes[i]
		if n.IsRoot() {
			root = &nodes[i]
			continue
		}
		children[n.ParentID()] = append(children[n.ParentID()], n)
	}
	for _, list := range children {
		sort.Slice(list, func(i, j int) bool { return list[i].Order() < list[j].Order() })
	}

	if root == nil {
		_, err := fmt.Fprintf(w, "%s (empty)\n", m.Title)
		return err
	}
	if _, err := fmt.Fprintln(w, root.Label()); err != nil {
		return err
	}
	return printChildren(w, children, root.ID(), "")
}

func printChildren(w io.Writer, children map[string][]mindmap.Node, parentID, indent string) error {
	list := children[parentID]
	for i, n := range list {
		branch, next := "├── ", "│   "
		if i == len(list)-1 {
			branch, next = "└── ", "    "
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", indent, branch, n.Label()); err != nil {
			return err
		}
		if err := printChildren(w, children, n.ID(), indent+next); err != nil {
			return err
		}
	}
	return nil
}
