package cron

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memState is one snapshot of every table the scenarios touch.
type memState struct {
	accounts    map[uuid.UUID]domain.Account
	ledger      map[uuid.UUID]domain.LedgerTransaction
	keys        map[string]uuid.UUID
	products    map[uuid.UUID]domain.Product
	investments map[uuid.UUID]domain.Investment
}

func newMemState() *memState {
	return &memState{
		accounts:    map[uuid.UUID]domain.Account{},
		ledger:      map[uuid.UUID]domain.LedgerTransaction{},
		keys:        map[string]uuid.UUID{},
		products:    map[uuid.UUID]domain.Product{},
		investments: map[uuid.UUID]domain.Investment{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:    maps.Clone(s.accounts),
		ledger:      make(map[uuid.UUID]domain.LedgerTransaction, len(s.ledger)),
		keys:        maps.Clone(s.keys),
		products:    maps.Clone(s.products),
		investments: maps.Clone(s.investments),
	}
	for id, t := range s.ledger {
		t.Payload = maps.Clone(t.Payload)
		c.ledger[id] = t
	}
	return c
}

// memStore serializes transactions and publishes their snapshot on commit,
// which is enough isolation for single-process scenarios.
type memStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memState
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

type memTx struct {
	pgx.Tx
	store *memStore
	state *memState
	done  bool
}

func (s *memStore) Begin(context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return &memTx{store: s, state: snapshot}, nil
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (s *memStore) read(fn func(st *memState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

func stateOf(tx pgx.Tx) *memState { return tx.(*memTx).state }

// seed writes directly to the committed state.
func (s *memStore) seedAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[a.ID] = a
}

func (s *memStore) seedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *memStore) balance(id uuid.UUID) decimal.Decimal {
	var b decimal.Decimal
	s.read(func(st *memState) { b = st.accounts[id].SpendableBalance })
	return b
}

func (s *memStore) ledgerRows(kind domain.TransactionKind) []domain.LedgerTransaction {
	var rows []domain.LedgerTransaction
	s.read(func(st *memState) {
		for _, t := range st.ledger {
			if t.Kind == kind {
				rows = append(rows, t)
			}
		}
	})
	return rows
}

// --- repositories ---

type memAccounts struct{ *memStore }

var _ ports.AccountRepository = memAccounts{}

func (r memAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	r.read(func(st *memState) {
		if a, ok := st.accounts[id]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	var out *domain.Account
	r.read(func(st *memState) {
		for _, a := range st.accounts {
			if strings.EqualFold(a.Email, email) {
				out = &a
				return
			}
		}
	})
	return out, nil
}

func (r memAccounts) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	a, ok := stateOf(tx).accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r memAccounts) UpdateBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, field domain.BalanceField, value decimal.Decimal) error {
	st := stateOf(tx)
	a := st.accounts[id]
	a.SetBalance(field, value)
	st.accounts[id] = a
	return nil
}

type memLedger struct{ *memStore }

var _ ports.LedgerRepository = memLedger{}

func (r memLedger) Insert(_ context.Context, tx pgx.Tx, t *domain.LedgerTransaction) (bool, error) {
	st := stateOf(tx)
	if t.IdempotencyKey != nil {
		if _, dup := st.keys[*t.IdempotencyKey]; dup {
			return false, nil
		}
		st.keys[*t.IdempotencyKey] = t.ID
	}
	row := *t
	row.Payload = maps.Clone(t.Payload)
	st.ledger[t.ID] = row
	return true, nil
}

func (r memLedger) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerTransaction, error) {
	var out *domain.LedgerTransaction
	r.read(func(st *memState) {
		if t, ok := st.ledger[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (r memLedger) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerTransaction, error) {
	t, ok := stateOf(tx).ledger[id]
	if !ok {
		return nil, nil
	}
	t.Payload = maps.Clone(t.Payload)
	return &t, nil
}

func (r memLedger) ExistsByIdempotencyKey(_ context.Context, key string) (bool, error) {
	var ok bool
	r.read(func(st *memState) { _, ok = st.keys[key] })
	return ok, nil
}

func (r memLedger) UpdateStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, patch map[string]any) error {
	st := stateOf(tx)
	t := st.ledger[id]
	t.Status = status
	if t.Payload == nil {
		t.Payload = map[string]any{}
	}
	maps.Copy(t.Payload, patch)
	t.UpdatedAt = time.Now()
	st.ledger[id] = t
	return nil
}

type memProducts struct{ *memStore }

func (r memProducts) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	var out *domain.Product
	r.read(func(st *memState) {
		if p, ok := st.products[id]; ok {
			out = &p
		}
	})
	return out, nil
}

type memInvestments struct{ *memStore }

var _ ports.InvestmentRepository = memInvestments{}

func (r memInvestments) Create(_ context.Context, tx pgx.Tx, inv *domain.Investment) error {
	stateOf(tx).investments[inv.ID] = *inv
	return nil
}

func (r memInvestments) GetByID(_ context.Context, id uuid.UUID) (*domain.Investment, error) {
	var out *domain.Investment
	r.read(func(st *memState) {
		if inv, ok := st.investments[id]; ok {
			out = &inv
		}
	})
	return out, nil
}

func (r memInvestments) ListActive(context.Context) ([]domain.Investment, error) {
	var out []domain.Investment
	r.read(func(st *memState) {
		for _, inv := range st.investments {
			if inv.Status == domain.InvestmentActive {
				out = append(out, inv)
			}
		}
	})
	return out, nil
}

func (r memInvestments) CountByAccountAndProduct(_ context.Context, tx pgx.Tx, accountID, productID uuid.UUID) (int, error) {
	n := 0
	for _, inv := range stateOf(tx).investments {
		if inv.AccountID == accountID && inv.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (r memInvestments) AddEarnings(_ context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	st := stateOf(tx)
	inv, ok := st.investments[id]
	if !ok || inv.Status != domain.InvestmentActive {
		return false, nil
	}
	inv.TotalEarned = inv.TotalEarned.Add(amount)
	st.investments[id] = inv
	return true, nil
}

func (r memInvestments) Complete(_ context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	st := stateOf(tx)
	inv, ok := st.investments[id]
	if !ok || inv.Status != domain.InvestmentActive {
		return false, nil
	}
	inv.Status = domain.InvestmentCompleted
	inv.CompletedAt = &at
	st.investments[id] = inv
	return true, nil
}

// memSettler stands in for the settlement procedure: one deposit credit per
// payment id.
type memSettler struct {
	accounts ports.AccountRepository
	ledger   ports.LedgerService
}

func (s memSettler) Settle(ctx context.Context, d ports.DepositSettlement) (bool, error) {
	account, err := s.accounts.GetByEmail(ctx, d.UserEmail)
	if err != nil || account == nil {
		return false, err
	}
	key := domain.DepositKey(d.PaymentID)
	ref := d.PaymentID
	_, err = s.ledger.ApplyDelta(ctx, ports.DeltaRequest{
		AccountID:         account.ID,
		Field:             domain.BalanceSpendable,
		Delta:             d.Amount,
		Kind:              domain.KindDeposit,
		Status:            domain.StatusCompleted,
		ExternalReference: &ref,
		IdempotencyKey:    &key,
	})
	if service.IsDuplicate(err) {
		return false, nil
	}
	return err == nil, err
}

type memReceipts struct {
	mu   sync.Mutex
	rows []domain.WebhookReceipt
}

func (r *memReceipts) Create(_ context.Context, rec *domain.WebhookReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *rec)
	return nil
}

func (r *memReceipts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, *domain.AuditLog) {}
