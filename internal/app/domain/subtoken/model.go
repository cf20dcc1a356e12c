package subtoken

// Lock records one parent token held in factory custody backing a derived
// collection. EscrowedID is the concrete id that moved into custody, which
// for a multi-token range is the top id of the parent record.
type Lock struct {
	DerivedCollectionID string
	ParentCollectionID  string
	TokenID             uint64
	EscrowedID          uint64
	Creator             string
}
