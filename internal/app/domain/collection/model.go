package collection

// TokenType tags a collection's fungibility. Untyped collections accept both
// fungible and non-fungible mints.
type TokenType uint8

const (
	TypeUntyped TokenType = iota
	TypeNonFungible
	TypeFungible
)

// String returns the lowercase name of the token type.
func (t TokenType) String() string {
	switch t {
	case TypeNonFungible:
		return "non_fungible"
	case TypeFungible:
		return "fungible"
	default:
		return "untyped"
	}
}

// ParseTokenType maps a wire name back to a TokenType. Unknown names map to
// TypeUntyped.
func ParseTokenType(s string) TokenType {
	switch s {
	case "non_fungible":
		return TypeNonFungible
	case "fungible":
		return TypeFungible
	default:
		return TypeUntyped
	}
}

// Collection is the registry entry for one token collection. TotalSupply is
// mutated only through the registry's checked add/sub operations and always
// equals the sum of live token units across the collection.
type Collection struct {
	ID          string
	Owner       string
	URI         string
	TotalSupply uint64
	TokenType   TokenType
}
