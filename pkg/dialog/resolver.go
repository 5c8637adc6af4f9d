package dialog

import (
	"log/slog"
)

// Resolver inlines a dialog graph into a ResolvedNode tree. Generated
// content can be malformed or cyclic, so resolution never fails hard:
// bad references and cycles degrade the affected option to a terminal
// choice and record a diagnostic.
type Resolver struct {
	log *slog.Logger
}

// NewResolver creates a resolver. A nil logger falls back to the default.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log}
}

// frame is one unit of pending traversal work: the node to resolve, the
// ids already on the path leading to it, and the slot in the output tree
// that the resolved node is written into.
type frame struct {
	id   string
	path []string
	dst  **ResolvedNode
}

// Resolve walks the graph from entryID, inlining each option's next
// reference. Cycle policy: the set of node ids on the *current path* is
// tracked per branch, not globally; revisiting a node on the same path
// cuts that branch (the option's Next stays nil). A node shared between
// two independent branches is resolved once per branch.
//
// Returns nil for an unknown entry or an empty mapping.
func (r *Resolver) Resolve(nodes map[string]Node, entryID string) *ResolvedNode {
	if len(nodes) == 0 || entryID == "" {
		return nil
	}
	if _, ok := nodes[entryID]; !ok {
		return nil
	}

	var root *ResolvedNode
	stack := []frame{{id: entryID, dst: &root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := nodes[f.id]
		if !ok {
			r.log.Warn("dialog option references unknown node, terminating branch",
				"node_id", f.id)
			continue
		}
		if onPath(f.path, f.id) {
			r.log.Warn("dialog cycle detected, terminating branch",
				"node_id", f.id, "path_depth", len(f.path))
			continue
		}

		rn := &ResolvedNode{
			ID:      node.ID,
			Speaker: node.Speaker,
			Text:    node.Text,
		}
		if len(node.Options) > 0 {
			path := make([]string, 0, len(f.path)+1)
			path = append(path, f.path...)
			path = append(path, f.id)

			rn.Options = make([]ResolvedOption, len(node.Options))
			for i, opt := range node.Options {
				rn.Options[i] = ResolvedOption{
					Text:     opt.Text,
					SetFlag:  opt.SetFlag,
					GiveItem: opt.GiveItem,
				}
				if !opt.IsTerminal() {
					stack = append(stack, frame{
						id:   opt.Next,
						path: path,
						dst:  &rn.Options[i].Next,
					})
				}
			}
		}
		*f.dst = rn
	}

	return root
}

func onPath(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
