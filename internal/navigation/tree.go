package navigation

import "sort"

// BuildTree groups level-2 items under their level-1 parents.  Both levels
// are ordered by display_order; ties keep input order.  Level-2 items whose
// parent is absent from items are dropped.
func BuildTree(items []Item) []Node {
	var top []Item
	children := make(map[string][]Item)
	for _, it := range items {
		switch it.Level {
		case 1:
			top = append(top, it)
		case 2:
			if it.ParentID != nil {
				children[*it.ParentID] = append(children[*it.ParentID], it)
			}
		}
	}

	byOrder := func(s []Item) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].DisplayOrder < s[j].DisplayOrder })
	}
	byOrder(top)

	nodes := make([]Node, 0, len(top))
	for _, it := range top {
		kids := children[it.ID]
		byOrder(kids)
		if kids == nil {
			kids = []Item{}
		}
		nodes = append(nodes, Node{Item: it, Children: kids})
	}
	return nodes
}
