package satp

// RoutingNode is one node of the 256-ary prefix trie, spec.md §3/§4.5.
// Children are sparse (nil until inserted); a node that has been
// reached by a matching prefix carries valid/mux.
type RoutingNode struct {
	children [256]*RoutingNode
	valid    bool
	mux      uint16
}

// RoutingTree maps a destination address prefix to a 16-bit mux,
// spec.md §4.5. It is built once at startup and is safe for concurrent
// lookups without locking once construction is done (spec.md §5); it
// is not safe to Insert concurrently with Lookup.
type RoutingTree struct {
	root RoutingNode
}

// NewRoutingTree returns an empty tree with no routes.
func NewRoutingTree() *RoutingTree {
	return &RoutingTree{}
}

// Insert adds (prefix, prefixLenBits, mux), spec.md §4.5:
//
//   - walk prefixLenBits/8 full bytes, creating nodes as needed;
//   - if prefixLenBits%8 == r != 0, at the next byte mark every child
//     whose index matches the top r bits of prefix[prefixLenBits/8];
//   - if r == 0, mark the reached node itself.
//
// prefixLenBits == 0 marks the root itself, a default route matching
// any address, spec.md §9. Inserting the same (prefix, len, mux) twice
// is idempotent, spec.md §8.
func (t *RoutingTree) Insert(prefix []byte, prefixLenBits int, mux uint16) error {
	if prefixLenBits < 0 || prefixLenBits > len(prefix)*8 {
		return wrapf(ErrMalformed, "routing: prefix length %d bits out of range for %d-byte prefix", prefixLenBits, len(prefix))
	}

	fullBytes := prefixLenBits / 8
	remBits := prefixLenBits % 8

	node := &t.root
	for i := 0; i < fullBytes; i++ {
		idx := prefix[i]
		if node.children[idx] == nil {
			node.children[idx] = &RoutingNode{}
		}
		node = node.children[idx]
	}

	if remBits == 0 {
		node.valid = true
		node.mux = mux
		return nil
	}

	b := prefix[fullBytes]
	mask := byte(0xff << uint(8-remBits))
	base := b & mask
	span := byte(0xff >> uint(remBits))
	top := base | span

	for i := int(base); i <= int(top); i++ {
		if node.children[i] == nil {
			node.children[i] = &RoutingNode{}
		}
		node.children[i].valid = true
		node.children[i].mux = mux
	}
	return nil
}

// Lookup walks the tree byte-by-byte over addr and returns the mux of
// the last valid node seen on the path (longest-prefix match), spec.md
// §4.5/§8. ErrNoRoute if no node on the path (including the root) was
// ever marked valid.
func (t *RoutingTree) Lookup(addr []byte) (uint16, error) {
	var (
		mux   uint16
		valid bool
	)
	node := &t.root
	if node.valid {
		mux = node.mux
		valid = true
	}
	for _, b := range addr {
		child := node.children[b]
		if child == nil {
			break
		}
		node = child
		if node.valid {
			mux = node.mux
			valid = true
		}
	}
	if !valid {
		return 0, wrapf(ErrNoRoute, "routing: no route for address")
	}
	return mux, nil
}
