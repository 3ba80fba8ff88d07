package kmc

// ensembleClass holds the instances currently realizing one ensemble
// pattern. Items keep insertion order and removal swaps in the last item, so
// drawing index i with the engine RNG is reproducible.
type ensembleClass struct {
	ensemble Ensemble
	items    []InstanceID
	pos      map[InstanceID]int
}

func newEnsembleClass(ens Ensemble) *ensembleClass {
	return &ensembleClass{ensemble: ens, pos: make(map[InstanceID]int)}
}

func (c *ensembleClass) add(id InstanceID) bool {
	if _, ok := c.pos[id]; ok {
		return false
	}
	c.pos[id] = len(c.items)
	c.items = append(c.items, id)
	return true
}

func (c *ensembleClass) remove(id InstanceID) bool {
	i, ok := c.pos[id]
	if !ok {
		return false
	}
	last := len(c.items) - 1
	if i != last {
		moved := c.items[last]
		c.items[i] = moved
		c.pos[moved] = i
	}
	c.items = c.items[:last]
	delete(c.pos, id)
	return true
}

func (c *ensembleClass) len() int {
	return len(c.items)
}

func (c *ensembleClass) at(i int) InstanceID {
	return c.items[i]
}

// classTable maps ensemble patterns referenced by the mechanism to their
// classes.
type classTable struct {
	classes []*ensembleClass
	byKey   map[string]int
}

func newClassTable() *classTable {
	return &classTable{byKey: make(map[string]int)}
}

// ensure returns the index of the class for ens, creating it if needed.
func (t *classTable) ensure(ens Ensemble) int {
	if i, ok := t.byKey[ens.Key()]; ok {
		return i
	}
	t.byKey[ens.Key()] = len(t.classes)
	t.classes = append(t.classes, newEnsembleClass(ens))
	return len(t.classes) - 1
}

func (t *classTable) lookup(ens Ensemble) (*ensembleClass, bool) {
	i, ok := t.byKey[ens.Key()]
	if !ok {
		return nil, false
	}
	return t.classes[i], true
}
