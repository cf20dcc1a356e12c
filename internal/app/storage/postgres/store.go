// Package postgres implements the storage interfaces on PostgreSQL. Unsigned
// engine quantities are stored in BIGINT columns; the engine's checked
// arithmetic keeps them far below the signed ceiling in practice.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/domain/exchange"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
	"github.com/R3E-Network/token_engine/internal/app/domain/subtoken"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.NonceStore = (*Store)(nil)
var _ storage.CollectionStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.GraphStore = (*Store)(nil)
var _ storage.SubTokenStore = (*Store)(nil)
var _ storage.ExchangeStore = (*Store)(nil)
var _ storage.DAOStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the engine tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS engine_nonce (
	id    SMALLINT PRIMARY KEY DEFAULT 1,
	value BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS collections (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL,
	uri          TEXT NOT NULL DEFAULT '',
	total_supply BIGINT NOT NULL DEFAULT 0,
	token_type   SMALLINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS token_ranges (
	collection_id TEXT NOT NULL,
	start_idx     BIGINT NOT NULL,
	end_idx       BIGINT NOT NULL,
	owner         TEXT NOT NULL,
	uri           TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (collection_id, start_idx)
);
CREATE TABLE IF NOT EXISTS token_balances (
	collection_id TEXT NOT NULL,
	account       TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	PRIMARY KEY (collection_id, account)
);
CREATE TABLE IF NOT EXISTS token_burned (
	collection_id TEXT PRIMARY KEY,
	amount        BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS token_last_ids (
	collection_id TEXT PRIMARY KEY,
	last_id       BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS graph_links (
	child_collection  TEXT NOT NULL,
	child_token       BIGINT NOT NULL,
	parent_collection TEXT NOT NULL,
	parent_token      BIGINT NOT NULL,
	escrowed_id       BIGINT NOT NULL,
	PRIMARY KEY (child_collection, child_token)
);
CREATE INDEX IF NOT EXISTS graph_links_parent
	ON graph_links (parent_collection, parent_token);
CREATE TABLE IF NOT EXISTS subtoken_locks (
	derived_collection_id TEXT PRIMARY KEY,
	parent_collection_id  TEXT NOT NULL,
	token_id              BIGINT NOT NULL,
	escrowed_id           BIGINT NOT NULL,
	creator               TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS exchange_order_seq (
	id   SMALLINT PRIMARY KEY DEFAULT 1,
	next BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS exchange_orders (
	id            BIGINT PRIMARY KEY,
	collection_id TEXT NOT NULL,
	start_idx     BIGINT NOT NULL,
	seller        TEXT NOT NULL,
	price         BIGINT NOT NULL,
	amount        BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS exchange_pools (
	collection_id TEXT NOT NULL,
	seller        TEXT NOT NULL,
	supply        BIGINT NOT NULL,
	sold          BIGINT NOT NULL DEFAULT 0,
	m             BIGINT NOT NULL,
	reverse_ratio BIGINT NOT NULL,
	pool_balance  BIGINT NOT NULL DEFAULT 0,
	end_time      BIGINT NOT NULL,
	PRIMARY KEY (collection_id, seller)
);
CREATE TABLE IF NOT EXISTS daos (
	account_id        TEXT PRIMARY KEY,
	escrow_id         TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	summoner          TEXT NOT NULL,
	metadata          TEXT NOT NULL DEFAULT '',
	period_duration   BIGINT NOT NULL,
	voting_period     BIGINT NOT NULL,
	grace_period      BIGINT NOT NULL,
	total_shares      BIGINT NOT NULL,
	summoning_time    BIGINT NOT NULL,
	dilution_bound    BIGINT NOT NULL,
	proposal_deposit  BIGINT NOT NULL,
	processing_reward BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS dao_members (
	dao_account            TEXT NOT NULL,
	member                 TEXT NOT NULL,
	shares                 BIGINT NOT NULL,
	highest_index_yes_vote BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (dao_account, member)
);
CREATE TABLE IF NOT EXISTS dao_proposal_seq (
	dao_account TEXT PRIMARY KEY,
	next        BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS dao_proposals (
	dao_account         TEXT NOT NULL,
	id                  BIGINT NOT NULL,
	applicant           TEXT NOT NULL,
	proposer            TEXT NOT NULL,
	sponsor             TEXT NOT NULL DEFAULT '',
	shares_requested    BIGINT NOT NULL,
	tribute_offered     BIGINT NOT NULL,
	tribute_collection  TEXT,
	tribute_token_id    BIGINT,
	starting_period     BIGINT NOT NULL DEFAULT 0,
	yes_votes           BIGINT NOT NULL DEFAULT 0,
	no_votes            BIGINT NOT NULL DEFAULT 0,
	details             TEXT NOT NULL DEFAULT '',
	action              BYTEA,
	sponsored           BOOLEAN NOT NULL DEFAULT FALSE,
	processed           BOOLEAN NOT NULL DEFAULT FALSE,
	did_pass            BOOLEAN NOT NULL DEFAULT FALSE,
	cancelled           BOOLEAN NOT NULL DEFAULT FALSE,
	executed            BOOLEAN NOT NULL DEFAULT FALSE,
	max_shares_at_yes   BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (dao_account, id)
);
CREATE TABLE IF NOT EXISTS dao_queue (
	dao_account TEXT NOT NULL,
	idx         BIGINT NOT NULL,
	proposal_id BIGINT NOT NULL,
	PRIMARY KEY (dao_account, idx)
);
CREATE TABLE IF NOT EXISTS dao_votes (
	dao_account TEXT NOT NULL,
	idx         BIGINT NOT NULL,
	member      TEXT NOT NULL,
	PRIMARY KEY (dao_account, idx, member)
);
`

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- NonceStore -------------------------------------------------------------

func (s *Store) GetNonce(ctx context.Context) (uint64, error) {
	var value uint64
	err := s.db.GetContext(ctx, &value, `SELECT value FROM engine_nonce WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

func (s *Store) SetNonce(ctx context.Context, value uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_nonce (id, value) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value
	`, value)
	return err
}

// --- CollectionStore --------------------------------------------------------

func (s *Store) CreateCollection(ctx context.Context, col collection.Collection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, owner, uri, total_supply, token_type)
		VALUES ($1, $2, $3, $4, $5)
	`, col.ID, col.Owner, col.URI, col.TotalSupply, col.TokenType)
	return err
}

func (s *Store) UpdateCollection(ctx context.Context, col collection.Collection) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collections
		SET owner = $2, uri = $3, total_supply = $4, token_type = $5
		WHERE id = $1
	`, col.ID, col.Owner, col.URI, col.TotalSupply, col.TokenType)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, id string) (collection.Collection, error) {
	var row struct {
		ID          string `db:"id"`
		Owner       string `db:"owner"`
		URI         string `db:"uri"`
		TotalSupply uint64 `db:"total_supply"`
		TokenType   uint8  `db:"token_type"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner, uri, total_supply, token_type FROM collections WHERE id = $1
	`, id)
	if err != nil {
		return collection.Collection{}, notFound(err)
	}
	return collection.Collection{
		ID:          row.ID,
		Owner:       row.Owner,
		URI:         row.URI,
		TotalSupply: row.TotalSupply,
		TokenType:   collection.TokenType(row.TokenType),
	}, nil
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]collection.Collection, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, owner, uri, total_supply, token_type FROM collections ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []collection.Collection
	for rows.Next() {
		var (
			col collection.Collection
			tt  uint8
		)
		if err := rows.Scan(&col.ID, &col.Owner, &col.URI, &col.TotalSupply, &tt); err != nil {
			return nil, err
		}
		col.TokenType = collection.TokenType(tt)
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// --- TokenStore -------------------------------------------------------------

func (s *Store) PutRange(ctx context.Context, rng token.Range) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_ranges (collection_id, start_idx, end_idx, owner, uri)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection_id, start_idx) DO UPDATE
		SET end_idx = EXCLUDED.end_idx, owner = EXCLUDED.owner, uri = EXCLUDED.uri
	`, rng.CollectionID, rng.StartIdx, rng.EndIdx, rng.Owner, rng.URI)
	return err
}

func (s *Store) GetRange(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error) {
	var rng token.Range
	err := s.db.QueryRowxContext(ctx, `
		SELECT collection_id, start_idx, end_idx, owner, uri
		FROM token_ranges WHERE collection_id = $1 AND start_idx = $2
	`, collectionID, startIdx).Scan(&rng.CollectionID, &rng.StartIdx, &rng.EndIdx, &rng.Owner, &rng.URI)
	if err != nil {
		return token.Range{}, notFound(err)
	}
	return rng, nil
}

func (s *Store) DeleteRange(ctx context.Context, collectionID string, startIdx uint64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM token_ranges WHERE collection_id = $1 AND start_idx = $2
	`, collectionID, startIdx)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListRanges(ctx context.Context, collectionID string) ([]token.Range, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT collection_id, start_idx, end_idx, owner, uri
		FROM token_ranges WHERE collection_id = $1 ORDER BY start_idx
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []token.Range
	for rows.Next() {
		var rng token.Range
		if err := rows.Scan(&rng.CollectionID, &rng.StartIdx, &rng.EndIdx, &rng.Owner, &rng.URI); err != nil {
			return nil, err
		}
		ranges = append(ranges, rng)
	}
	return ranges, rows.Err()
}

func (s *Store) DeleteCollectionRanges(ctx context.Context, collectionID string) error {
	for _, q := range []string{
		`DELETE FROM token_ranges WHERE collection_id = $1`,
		`DELETE FROM token_balances WHERE collection_id = $1`,
		`DELETE FROM token_last_ids WHERE collection_id = $1`,
	} {
		if _, err := s.db.ExecContext(ctx, q, collectionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, collectionID, account string) (uint64, error) {
	var amount uint64
	err := s.db.GetContext(ctx, &amount, `
		SELECT amount FROM token_balances WHERE collection_id = $1 AND account = $2
	`, collectionID, account)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (s *Store) SetBalance(ctx context.Context, collectionID, account string, amount uint64) error {
	if amount == 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM token_balances WHERE collection_id = $1 AND account = $2
		`, collectionID, account)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_balances (collection_id, account, amount) VALUES ($1, $2, $3)
		ON CONFLICT (collection_id, account) DO UPDATE SET amount = EXCLUDED.amount
	`, collectionID, account, amount)
	return err
}

func (s *Store) GetBurned(ctx context.Context, collectionID string) (uint64, error) {
	var amount uint64
	err := s.db.GetContext(ctx, &amount, `
		SELECT amount FROM token_burned WHERE collection_id = $1
	`, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (s *Store) SetBurned(ctx context.Context, collectionID string, amount uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_burned (collection_id, amount) VALUES ($1, $2)
		ON CONFLICT (collection_id) DO UPDATE SET amount = EXCLUDED.amount
	`, collectionID, amount)
	return err
}

func (s *Store) GetLastTokenID(ctx context.Context, collectionID string) (uint64, bool, error) {
	var lastID uint64
	err := s.db.GetContext(ctx, &lastID, `
		SELECT last_id FROM token_last_ids WHERE collection_id = $1
	`, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return lastID, true, nil
}

func (s *Store) SetLastTokenID(ctx context.Context, collectionID string, id uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_last_ids (collection_id, last_id) VALUES ($1, $2)
		ON CONFLICT (collection_id) DO UPDATE SET last_id = EXCLUDED.last_id
	`, collectionID, id)
	return err
}

// --- GraphStore -------------------------------------------------------------

func (s *Store) PutLink(ctx context.Context, link graph.Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_links (child_collection, child_token, parent_collection, parent_token, escrowed_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_collection, child_token) DO UPDATE
		SET parent_collection = EXCLUDED.parent_collection,
		    parent_token = EXCLUDED.parent_token,
		    escrowed_id = EXCLUDED.escrowed_id
	`, link.Child.CollectionID, link.Child.TokenID, link.Parent.CollectionID, link.Parent.TokenID, link.EscrowedID)
	return err
}

func (s *Store) GetLink(ctx context.Context, child graph.Node) (graph.Link, error) {
	var link graph.Link
	err := s.db.QueryRowxContext(ctx, `
		SELECT child_collection, child_token, parent_collection, parent_token, escrowed_id
		FROM graph_links WHERE child_collection = $1 AND child_token = $2
	`, child.CollectionID, child.TokenID).Scan(
		&link.Child.CollectionID, &link.Child.TokenID,
		&link.Parent.CollectionID, &link.Parent.TokenID, &link.EscrowedID)
	if err != nil {
		return graph.Link{}, notFound(err)
	}
	return link, nil
}

func (s *Store) DeleteLink(ctx context.Context, child graph.Node) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM graph_links WHERE child_collection = $1 AND child_token = $2
	`, child.CollectionID, child.TokenID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) HasChildren(ctx context.Context, parent graph.Node) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM graph_links WHERE parent_collection = $1 AND parent_token = $2
		)
	`, parent.CollectionID, parent.TokenID)
	return exists, err
}

// --- SubTokenStore ----------------------------------------------------------

func (s *Store) PutLock(ctx context.Context, lock subtoken.Lock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtoken_locks (derived_collection_id, parent_collection_id, token_id, escrowed_id, creator)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (derived_collection_id) DO UPDATE
		SET parent_collection_id = EXCLUDED.parent_collection_id,
		    token_id = EXCLUDED.token_id,
		    escrowed_id = EXCLUDED.escrowed_id,
		    creator = EXCLUDED.creator
	`, lock.DerivedCollectionID, lock.ParentCollectionID, lock.TokenID, lock.EscrowedID, lock.Creator)
	return err
}

func (s *Store) GetLock(ctx context.Context, derivedCollectionID string) (subtoken.Lock, error) {
	var lock subtoken.Lock
	err := s.db.QueryRowxContext(ctx, `
		SELECT derived_collection_id, parent_collection_id, token_id, escrowed_id, creator
		FROM subtoken_locks WHERE derived_collection_id = $1
	`, derivedCollectionID).Scan(
		&lock.DerivedCollectionID, &lock.ParentCollectionID, &lock.TokenID, &lock.EscrowedID, &lock.Creator)
	if err != nil {
		return subtoken.Lock{}, notFound(err)
	}
	return lock, nil
}

func (s *Store) DeleteLock(ctx context.Context, derivedCollectionID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM subtoken_locks WHERE derived_collection_id = $1
	`, derivedCollectionID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- ExchangeStore ----------------------------------------------------------

func (s *Store) NextOrderID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO exchange_order_seq (id, next) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET next = exchange_order_seq.next + 1
		RETURNING next - 1
	`)
	return id, err
}

func (s *Store) PutOrder(ctx context.Context, ord exchange.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_orders (id, collection_id, start_idx, seller, price, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET start_idx = EXCLUDED.start_idx, amount = EXCLUDED.amount
	`, ord.ID, ord.CollectionID, ord.StartIdx, ord.Seller, ord.Price, ord.Amount)
	return err
}

func (s *Store) GetOrder(ctx context.Context, id uint64) (exchange.Order, error) {
	var ord exchange.Order
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, collection_id, start_idx, seller, price, amount
		FROM exchange_orders WHERE id = $1
	`, id).Scan(&ord.ID, &ord.CollectionID, &ord.StartIdx, &ord.Seller, &ord.Price, &ord.Amount)
	if err != nil {
		return exchange.Order{}, notFound(err)
	}
	return ord, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id uint64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM exchange_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context) ([]exchange.Order, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, collection_id, start_idx, seller, price, amount
		FROM exchange_orders ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []exchange.Order
	for rows.Next() {
		var ord exchange.Order
		if err := rows.Scan(&ord.ID, &ord.CollectionID, &ord.StartIdx, &ord.Seller, &ord.Price, &ord.Amount); err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

func (s *Store) PutPool(ctx context.Context, pool exchange.Pool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_pools (collection_id, seller, supply, sold, m, reverse_ratio, pool_balance, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (collection_id, seller) DO UPDATE
		SET supply = EXCLUDED.supply, sold = EXCLUDED.sold, pool_balance = EXCLUDED.pool_balance
	`, pool.CollectionID, pool.Seller, pool.Supply, pool.Sold, pool.M, pool.ReverseRatio, pool.PoolBalance, pool.EndTime)
	return err
}

func (s *Store) GetPool(ctx context.Context, collectionID, seller string) (exchange.Pool, error) {
	var pool exchange.Pool
	err := s.db.QueryRowxContext(ctx, `
		SELECT collection_id, seller, supply, sold, m, reverse_ratio, pool_balance, end_time
		FROM exchange_pools WHERE collection_id = $1 AND seller = $2
	`, collectionID, seller).Scan(
		&pool.CollectionID, &pool.Seller, &pool.Supply, &pool.Sold,
		&pool.M, &pool.ReverseRatio, &pool.PoolBalance, &pool.EndTime)
	if err != nil {
		return exchange.Pool{}, notFound(err)
	}
	return pool, nil
}

func (s *Store) DeletePool(ctx context.Context, collectionID, seller string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM exchange_pools WHERE collection_id = $1 AND seller = $2
	`, collectionID, seller)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPools(ctx context.Context) ([]exchange.Pool, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT collection_id, seller, supply, sold, m, reverse_ratio, pool_balance, end_time
		FROM exchange_pools ORDER BY collection_id, seller
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []exchange.Pool
	for rows.Next() {
		var pool exchange.Pool
		if err := rows.Scan(&pool.CollectionID, &pool.Seller, &pool.Supply, &pool.Sold,
			&pool.M, &pool.ReverseRatio, &pool.PoolBalance, &pool.EndTime); err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// --- DAOStore ---------------------------------------------------------------

func (s *Store) PutDAO(ctx context.Context, d dao.DAO) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daos (account_id, escrow_id, name, summoner, metadata,
			period_duration, voting_period, grace_period, total_shares,
			summoning_time, dilution_bound, proposal_deposit, processing_reward)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_id) DO UPDATE SET total_shares = EXCLUDED.total_shares
	`, d.AccountID, d.EscrowID, d.Name, d.Summoner, d.Metadata,
		d.PeriodDuration, d.VotingPeriod, d.GracePeriod, d.TotalShares,
		d.SummoningTime, d.DilutionBound, d.ProposalDeposit, d.ProcessingReward)
	return err
}

func (s *Store) GetDAO(ctx context.Context, account string) (dao.DAO, error) {
	var d dao.DAO
	err := s.db.QueryRowxContext(ctx, `
		SELECT account_id, escrow_id, name, summoner, metadata,
			period_duration, voting_period, grace_period, total_shares,
			summoning_time, dilution_bound, proposal_deposit, processing_reward
		FROM daos WHERE account_id = $1
	`, account).Scan(&d.AccountID, &d.EscrowID, &d.Name, &d.Summoner, &d.Metadata,
		&d.PeriodDuration, &d.VotingPeriod, &d.GracePeriod, &d.TotalShares,
		&d.SummoningTime, &d.DilutionBound, &d.ProposalDeposit, &d.ProcessingReward)
	if err != nil {
		return dao.DAO{}, notFound(err)
	}
	return d, nil
}

func (s *Store) ListDAOs(ctx context.Context) ([]dao.DAO, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT account_id, escrow_id, name, summoner, metadata,
			period_duration, voting_period, grace_period, total_shares,
			summoning_time, dilution_bound, proposal_deposit, processing_reward
		FROM daos ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var daos []dao.DAO
	for rows.Next() {
		var d dao.DAO
		if err := rows.Scan(&d.AccountID, &d.EscrowID, &d.Name, &d.Summoner, &d.Metadata,
			&d.PeriodDuration, &d.VotingPeriod, &d.GracePeriod, &d.TotalShares,
			&d.SummoningTime, &d.DilutionBound, &d.ProposalDeposit, &d.ProcessingReward); err != nil {
			return nil, err
		}
		daos = append(daos, d)
	}
	return daos, rows.Err()
}

func (s *Store) PutMember(ctx context.Context, daoAccount, member string, m dao.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dao_members (dao_account, member, shares, highest_index_yes_vote)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dao_account, member) DO UPDATE
		SET shares = EXCLUDED.shares, highest_index_yes_vote = EXCLUDED.highest_index_yes_vote
	`, daoAccount, member, m.Shares, m.HighestIndexYesVote)
	return err
}

func (s *Store) GetMember(ctx context.Context, daoAccount, member string) (dao.Member, error) {
	var m dao.Member
	err := s.db.QueryRowxContext(ctx, `
		SELECT shares, highest_index_yes_vote FROM dao_members
		WHERE dao_account = $1 AND member = $2
	`, daoAccount, member).Scan(&m.Shares, &m.HighestIndexYesVote)
	if err != nil {
		return dao.Member{}, notFound(err)
	}
	return m, nil
}

func (s *Store) NextProposalID(ctx context.Context, daoAccount string) (uint64, error) {
	var id uint64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO dao_proposal_seq (dao_account, next) VALUES ($1, 1)
		ON CONFLICT (dao_account) DO UPDATE SET next = dao_proposal_seq.next + 1
		RETURNING next - 1
	`, daoAccount)
	return id, err
}

func (s *Store) PutProposal(ctx context.Context, daoAccount string, p dao.Proposal) error {
	var (
		tributeCollection *string
		tributeTokenID    *uint64
	)
	if p.TributeNFT != nil {
		tributeCollection = &p.TributeNFT.CollectionID
		tributeTokenID = &p.TributeNFT.TokenID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dao_proposals (dao_account, id, applicant, proposer, sponsor,
			shares_requested, tribute_offered, tribute_collection, tribute_token_id,
			starting_period, yes_votes, no_votes, details, action,
			sponsored, processed, did_pass, cancelled, executed, max_shares_at_yes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (dao_account, id) DO UPDATE
		SET sponsor = EXCLUDED.sponsor,
		    starting_period = EXCLUDED.starting_period,
		    yes_votes = EXCLUDED.yes_votes,
		    no_votes = EXCLUDED.no_votes,
		    sponsored = EXCLUDED.sponsored,
		    processed = EXCLUDED.processed,
		    did_pass = EXCLUDED.did_pass,
		    cancelled = EXCLUDED.cancelled,
		    executed = EXCLUDED.executed,
		    max_shares_at_yes = EXCLUDED.max_shares_at_yes
	`, daoAccount, p.ID, p.Applicant, p.Proposer, p.Sponsor,
		p.SharesRequested, p.TributeOffered, tributeCollection, tributeTokenID,
		p.StartingPeriod, p.YesVotes, p.NoVotes, p.Details, p.Action,
		p.Sponsored, p.Processed, p.DidPass, p.Cancelled, p.Executed, p.MaxTotalSharesAtYesVote)
	return err
}

func (s *Store) GetProposal(ctx context.Context, daoAccount string, id uint64) (dao.Proposal, error) {
	var (
		p                 dao.Proposal
		tributeCollection sql.NullString
		tributeTokenID    sql.NullInt64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, applicant, proposer, sponsor, shares_requested, tribute_offered,
			tribute_collection, tribute_token_id, starting_period, yes_votes, no_votes,
			details, action, sponsored, processed, did_pass, cancelled, executed, max_shares_at_yes
		FROM dao_proposals WHERE dao_account = $1 AND id = $2
	`, daoAccount, id).Scan(&p.ID, &p.Applicant, &p.Proposer, &p.Sponsor,
		&p.SharesRequested, &p.TributeOffered, &tributeCollection, &tributeTokenID,
		&p.StartingPeriod, &p.YesVotes, &p.NoVotes, &p.Details, &p.Action,
		&p.Sponsored, &p.Processed, &p.DidPass, &p.Cancelled, &p.Executed, &p.MaxTotalSharesAtYesVote)
	if err != nil {
		return dao.Proposal{}, notFound(err)
	}
	if tributeCollection.Valid {
		p.TributeNFT = &dao.TributeNFT{
			CollectionID: tributeCollection.String,
			TokenID:      uint64(tributeTokenID.Int64),
		}
	}
	return p, nil
}

func (s *Store) AppendQueue(ctx context.Context, daoAccount string, proposalID uint64) (uint64, error) {
	var index uint64
	err := s.db.GetContext(ctx, &index, `
		INSERT INTO dao_queue (dao_account, idx, proposal_id)
		SELECT $1, COALESCE(MAX(idx) + 1, 0), $2 FROM dao_queue WHERE dao_account = $1
		RETURNING idx
	`, daoAccount, proposalID)
	return index, err
}

func (s *Store) QueueAt(ctx context.Context, daoAccount string, index uint64) (uint64, error) {
	var proposalID uint64
	err := s.db.GetContext(ctx, &proposalID, `
		SELECT proposal_id FROM dao_queue WHERE dao_account = $1 AND idx = $2
	`, daoAccount, index)
	if err != nil {
		return 0, notFound(err)
	}
	return proposalID, nil
}

func (s *Store) QueueLength(ctx context.Context, daoAccount string) (uint64, error) {
	var length uint64
	err := s.db.GetContext(ctx, &length, `
		SELECT COUNT(*) FROM dao_queue WHERE dao_account = $1
	`, daoAccount)
	return length, err
}

func (s *Store) HasVoted(ctx context.Context, daoAccount string, index uint64, member string) (bool, error) {
	var voted bool
	err := s.db.GetContext(ctx, &voted, `
		SELECT EXISTS (
			SELECT 1 FROM dao_votes WHERE dao_account = $1 AND idx = $2 AND member = $3
		)
	`, daoAccount, index, member)
	return voted, err
}

func (s *Store) RecordVote(ctx context.Context, daoAccount string, index uint64, member string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dao_votes (dao_account, idx, member) VALUES ($1, $2, $3)
		ON CONFLICT (dao_account, idx, member) DO NOTHING
	`, daoAccount, index, member)
	return err
}
