package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory implementations of every repository port, backing full-stack
// tests that run the real HTTP layer, middleware, services, and Redis
// stores without PostgreSQL.

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return fmt.Errorf("username already exists")
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) SumForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.sum(userID), nil
}

func (r *inMemoryLedgerRepo) SumForUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	return r.sum(userID), nil
}

func (r *inMemoryLedgerRepo) sum(userID uuid.UUID) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, e := range r.entries {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total
}

func (r *inMemoryLedgerRepo) ListForUser(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.LedgerEntry
	for _, e := range r.entries {
		if e.UserID != params.UserID {
			continue
		}
		if params.Reason != nil && e.Reason != *params.Reason {
			continue
		}
		if params.From != nil && e.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && e.CreatedAt.Unix() > *params.To {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *inMemoryLedgerRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range r.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *inMemoryLedgerRepo) DeleteSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.LedgerEntry
	var removed int64
	for _, e := range r.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *inMemoryLedgerRepo) Restore(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

// --- In-Memory Card Repo ---

type inMemoryCardRepo struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]domain.Card
}

func newInMemoryCardRepo() *inMemoryCardRepo {
	return &inMemoryCardRepo{cards: make(map[uuid.UUID]domain.Card)}
}

func (r *inMemoryCardRepo) Create(ctx context.Context, tx pgx.Tx, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[card.ID] = *card
	return nil
}

func (r *inMemoryCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *inMemoryCardRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryCardRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Card
	for _, c := range r.cards {
		if c.OwnerID != nil && *c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcquiredAt.After(out[j].AcquiredAt) })
	return out, nil
}

func (r *inMemoryCardRepo) UpdateOwner(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, owner *uuid.UUID, acquiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok {
		return fmt.Errorf("card not found")
	}
	c.OwnerID = owner
	c.AcquiredAt = acquiredAt
	r.cards[cardID] = c
	return nil
}

func (r *inMemoryCardRepo) ListOwnedSince(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, since time.Time) ([]domain.Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Card
	for _, c := range r.cards {
		if c.OwnerID != nil && *c.OwnerID == ownerID && !c.AcquiredAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *inMemoryCardRepo) CountLiveLegendary(ctx context.Context, characterID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, c := range r.cards {
		if c.CharacterID == characterID && c.Rarity == domain.RarityLegendary && c.OwnerID != nil {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryCardRepo) CountLiveLegendaryTx(ctx context.Context, tx pgx.Tx, characterID int64) (int64, error) {
	return r.CountLiveLegendary(ctx, characterID)
}

// --- In-Memory Listing Repo ---

type inMemoryListingRepo struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]domain.Listing
}

func newInMemoryListingRepo() *inMemoryListingRepo {
	return &inMemoryListingRepo{listings: make(map[uuid.UUID]domain.Listing)}
}

func (r *inMemoryListingRepo) Create(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = *listing
	return nil
}

func (r *inMemoryListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *inMemoryListingRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryListingRepo) GetActiveByCard(ctx context.Context, cardID uuid.UUID) (*domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.listings {
		if l.CardID == cardID && l.Status == domain.ListingActive {
			out := l
			return &out, nil
		}
	}
	return nil, nil
}

func (r *inMemoryListingRepo) GetActiveByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (*domain.Listing, error) {
	return r.GetActiveByCard(ctx, cardID)
}

func (r *inMemoryListingRepo) ListActive(ctx context.Context) ([]domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Listing
	for _, l := range r.listings {
		if l.Status == domain.ListingActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *inMemoryListingRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ListingStatus, resolvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return fmt.Errorf("listing not found")
	}
	l.Status = status
	l.ResolvedAt = resolvedAt
	r.listings[id] = l
	return nil
}

func (r *inMemoryListingRepo) CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for id, l := range r.listings {
		if l.Status == domain.ListingActive {
			l.Status = domain.ListingCancelled
			l.ResolvedAt = &now
			r.listings[id] = l
			count++
		}
	}
	return count, nil
}

func (r *inMemoryListingRepo) ListBySellerSince(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, since time.Time) ([]domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Listing
	for _, l := range r.listings {
		if l.SellerID == sellerID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- In-Memory Buy Order Repo ---

type inMemoryBuyOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]domain.BuyOrder
}

func newInMemoryBuyOrderRepo() *inMemoryBuyOrderRepo {
	return &inMemoryBuyOrderRepo{orders: make(map[uuid.UUID]domain.BuyOrder)}
}

func (r *inMemoryBuyOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.BuyOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *inMemoryBuyOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BuyOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *inMemoryBuyOrderRepo) ListActive(ctx context.Context) ([]domain.BuyOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.BuyOrder
	for _, o := range r.orders {
		if o.Status == domain.BuyOrderActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferPrice > out[j].OfferPrice })
	return out, nil
}

func (r *inMemoryBuyOrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BuyOrderStatus, resolvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("buy order not found")
	}
	o.Status = status
	o.ResolvedAt = resolvedAt
	r.orders[id] = o
	return nil
}

func (r *inMemoryBuyOrderRepo) CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	for id, o := range r.orders {
		if o.Status == domain.BuyOrderActive {
			o.Status = domain.BuyOrderCancelled
			o.ResolvedAt = &now
			r.orders[id] = o
			count++
		}
	}
	return count, nil
}

func (r *inMemoryBuyOrderRepo) ListByRequesterSince(ctx context.Context, tx pgx.Tx, requesterID uuid.UUID, since time.Time) ([]domain.BuyOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.BuyOrder
	for _, o := range r.orders {
		if o.RequesterID == requesterID && !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- In-Memory Trade Repo ---

type inMemoryTradeRepo struct {
	mu     sync.RWMutex
	trades map[uuid.UUID]domain.TradeOffer
}

func newInMemoryTradeRepo() *inMemoryTradeRepo {
	return &inMemoryTradeRepo{trades: make(map[uuid.UUID]domain.TradeOffer)}
}

func (r *inMemoryTradeRepo) Create(ctx context.Context, tx pgx.Tx, trade *domain.TradeOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[trade.ID] = *trade
	return nil
}

func (r *inMemoryTradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *inMemoryTradeRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTradeRepo) ListPendingByCard(ctx context.Context, cardID uuid.UUID) ([]domain.TradeOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TradeOffer
	for _, t := range r.trades {
		if t.IsPending() && t.References(cardID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *inMemoryTradeRepo) ListPendingByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) ([]domain.TradeOffer, error) {
	return r.ListPendingByCard(ctx, cardID)
}

func (r *inMemoryTradeRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TradeOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TradeOffer
	for _, t := range r.trades {
		if t.IsParty(userID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *inMemoryTradeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TradeStatus, resolvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[id]
	if !ok {
		return fmt.Errorf("trade not found")
	}
	t.Status = status
	t.ResolvedAt = resolvedAt
	r.trades[id] = t
	return nil
}

func (r *inMemoryTradeRepo) ListByUserSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.TradeOffer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.TradeOffer
	for _, t := range r.trades {
		if t.IsParty(userID) && !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- In-Memory Snapshot Repo ---

type inMemorySnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]domain.RollbackSnapshot
}

func newInMemorySnapshotRepo() *inMemorySnapshotRepo {
	return &inMemorySnapshotRepo{snapshots: make(map[uuid.UUID]domain.RollbackSnapshot)}
}

func (r *inMemorySnapshotRepo) Put(ctx context.Context, tx pgx.Tx, snapshot *domain.RollbackSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.UserID] = *snapshot
	return nil
}

func (r *inMemorySnapshotRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.RollbackSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *inMemorySnapshotRepo) GetTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.RollbackSnapshot, error) {
	return r.Get(ctx, userID)
}

func (r *inMemorySnapshotRepo) Delete(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, userID)
	return nil
}

// --- In-Memory Ticket / Codex Repos ---

type inMemoryTicketRepo struct {
	mu      sync.RWMutex
	tickets []domain.LotteryTicket
}

func newInMemoryTicketRepo() *inMemoryTicketRepo {
	return &inMemoryTicketRepo{}
}

func (r *inMemoryTicketRepo) Create(ctx context.Context, ticket *domain.LotteryTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, *ticket)
	return nil
}

func (r *inMemoryTicketRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LotteryTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LotteryTicket
	for _, t := range r.tickets {
		if t.UserID == userID && !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *inMemoryTicketRepo) DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.LotteryTicket
	for _, t := range r.tickets {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	r.tickets = kept
	return nil
}

func (r *inMemoryTicketRepo) Restore(ctx context.Context, tx pgx.Tx, tickets []domain.LotteryTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, tickets...)
	return nil
}

type inMemoryCodexRepo struct {
	mu      sync.RWMutex
	unlocks []domain.CodexUnlock
}

func newInMemoryCodexRepo() *inMemoryCodexRepo {
	return &inMemoryCodexRepo{}
}

func (r *inMemoryCodexRepo) Create(ctx context.Context, unlock *domain.CodexUnlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocks = append(r.unlocks, *unlock)
	return nil
}

func (r *inMemoryCodexRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.CodexUnlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.CodexUnlock
	for _, u := range r.unlocks {
		if u.UserID == userID && !u.CreatedAt.Before(since) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *inMemoryCodexRepo) DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.CodexUnlock
	for _, u := range r.unlocks {
		if !drop[u.ID] {
			kept = append(kept, u)
		}
	}
	r.unlocks = kept
	return nil
}

func (r *inMemoryCodexRepo) Restore(ctx context.Context, tx pgx.Tx, unlocks []domain.CodexUnlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocks = append(r.unlocks, unlocks...)
	return nil
}

// --- In-Memory Market State Repo ---

type inMemoryMarketStateRepo struct {
	mu      sync.RWMutex
	enabled bool
}

func newInMemoryMarketStateRepo() *inMemoryMarketStateRepo {
	return &inMemoryMarketStateRepo{enabled: true}
}

func (r *inMemoryMarketStateRepo) IsEnabled(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled, nil
}

func (r *inMemoryMarketStateRepo) IsEnabledTx(ctx context.Context, tx pgx.Tx) (bool, error) {
	return r.IsEnabled(ctx)
}

func (r *inMemoryMarketStateRepo) SetEnabled(ctx context.Context, tx pgx.Tx, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
