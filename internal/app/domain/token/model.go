package token

// Range is one contiguous run of non-fungible token ids within a collection,
// keyed by (CollectionID, StartIdx). All ids in [StartIdx, EndIdx] share the
// same owner and URI. Ranges under one collection never overlap; adjacent
// same-owner ranges are not merged.
type Range struct {
	CollectionID string
	StartIdx     uint64
	EndIdx       uint64
	Owner        string
	URI          string
}

// Size returns the number of token ids covered by the range.
func (r Range) Size() uint64 {
	return r.EndIdx - r.StartIdx + 1
}
