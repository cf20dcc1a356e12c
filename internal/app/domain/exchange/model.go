package exchange

// Order is an escrowed non-fungible sell order. The listed tokens sit in the
// exchange custody account while the order is open. StartIdx tracks the
// lowest unsold id; buyers consume from the low end, so it advances as the
// order fills.
type Order struct {
	ID           uint64
	CollectionID string
	StartIdx     uint64
	Seller       string
	Price        uint64
	Amount       uint64
}

// Pool is one seller's bonding-curve sale pool for a fungible collection,
// keyed by (CollectionID, Seller). Supply is the unsold token stock held in
// custody, Sold the outstanding tokens bought from the pool, and PoolBalance
// the currency proceeds escrowed against future sells.
type Pool struct {
	CollectionID string
	Seller       string
	Supply       uint64
	Sold         uint64
	M            uint64
	ReverseRatio uint64
	PoolBalance  uint64
	EndTime      uint64
}
