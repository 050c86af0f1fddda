package dictionary

// The dictionary document is irregular: per field there may or may not be
// instance-level rows and there may or may not be a coding reference. To keep
// the absent cases out of the row-scanning code, the parser first builds a
// small tagged tree of section nodes (one fieldBlock per data-field, with
// instanceBlock and codingBlock children) and only then folds the tree into a
// Registry. A missing coding table is then simply a fieldBlock without a
// codingBlock child, not a special case.

type blockKind int

const (
	fieldBlock blockKind = iota
	instanceBlock
	codingBlock
)

type sectionNode struct {
	kind     blockKind
	children []*sectionNode

	// fieldBlock
	fieldID string
	display string

	// instanceBlock
	instance    int
	array       int
	description string

	// codingBlock
	codingID  int
	codingURL string
}

func (n *sectionNode) child(kind blockKind) *sectionNode {
	for _, c := range n.children {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

func (n *sectionNode) add(child *sectionNode) {
	n.children = append(n.children, child)
}
