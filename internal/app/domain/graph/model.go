package graph

// Node identifies a single token inside a collection.
type Node struct {
	CollectionID string
	TokenID      uint64
}

// Link records a child token attached to a parent token. EscrowedID is the
// concrete token id held in linker custody for the child; a one-unit transfer
// out of a range moves the top id, so it can differ from the child's record
// key.
type Link struct {
	Child      Node
	Parent     Node
	EscrowedID uint64
}
