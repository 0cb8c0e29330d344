package ledger

import (
	"context"
	"fmt"
	"sort"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
)

// Poster writes transactions and applies their balance effect.
//
// It never opens a transaction itself: callers run it inside
// tx.Manager.RunInTransaction together with the owning document update.
type Poster struct {
	accounts AccountRepository
	txns     TransactionRepository
}

// NewPoster creates a poster.
func NewPoster(accounts AccountRepository, txns TransactionRepository) *Poster {
	return &Poster{accounts: accounts, txns: txns}
}

// Lock row-locks the accounts referenced by txns, in ascending id order.
func (p *Poster) Lock(ctx context.Context, txns []*Transaction) (map[id.ID]*Account, error) {
	seen := make(map[id.ID]struct{}, len(txns))
	ids := make([]id.ID, 0, len(txns))
	for _, t := range txns {
		if _, ok := seen[t.AccountID]; ok {
			continue
		}
		seen[t.AccountID] = struct{}{}
		ids = append(ids, t.AccountID)
	}
	if len(ids) == 0 {
		return map[id.ID]*Account{}, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	locked, err := p.accounts.LockForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, accID := range ids {
		acc, ok := locked[accID]
		if !ok || acc.IsDeleted {
			return nil, apperror.NewNotFound("account", accID)
		}
	}
	return locked, nil
}

// Record inserts t against an already locked account and applies the
// signed amount. A replayed row (same idempotency key) is skipped and
// reported as not inserted.
func (p *Poster) Record(ctx context.Context, t *Transaction, acc *Account) (bool, error) {
	if err := t.Validate(ctx); err != nil {
		return false, err
	}
	if acc == nil || acc.ID != t.AccountID {
		return false, apperror.NewNotFound("account", t.AccountID)
	}

	t.AccountName = acc.Name
	t.SetCreatedBy(appctx.Actor(ctx))

	inserted, err := p.txns.Insert(ctx, t)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	if !inserted {
		return false, nil
	}

	delta := SignedAmount(acc.AccountType, t.TransactionType, t.Amount)
	if err := p.accounts.AdjustBalance(ctx, acc.ID, delta); err != nil {
		return false, fmt.Errorf("adjust balance: %w", err)
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	return true, nil
}

// Reverse soft-deletes t and removes its balance effect.
func (p *Poster) Reverse(ctx context.Context, t *Transaction, acc *Account) error {
	if t.IsDeleted {
		return apperror.NewNotFound("transaction", t.ID)
	}
	if err := p.txns.MarkDeleted(ctx, t.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	delta := SignedAmount(acc.AccountType, t.TransactionType, t.Amount).Neg()
	if err := p.accounts.AdjustBalance(ctx, acc.ID, delta); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	t.MarkDeleted()
	return nil
}
