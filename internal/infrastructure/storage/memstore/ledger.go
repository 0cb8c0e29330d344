package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/ledger"
)

type accountRepo struct{ s *Store }

func (r *accountRepo) Create(ctx context.Context, a *ledger.Account) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.accounts[a.ID]; ok {
			err = apperror.NewConflict("account already exists")
			return
		}
		st.accounts[a.ID] = *a
	})
	return err
}

func (r *accountRepo) GetByID(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	var (
		acc ledger.Account
		ok  bool
	)
	r.s.read(func(st *state) { acc, ok = st.accounts[accountID] })
	if !ok {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return &acc, nil
}

func (r *accountRepo) LockForUpdate(ctx context.Context, accountIDs []id.ID) (map[id.ID]*ledger.Account, error) {
	out := make(map[id.ID]*ledger.Account, len(accountIDs))
	var missing *id.ID
	r.s.read(func(st *state) {
		for _, accID := range accountIDs {
			acc, ok := st.accounts[accID]
			if !ok {
				missing = &accID
				return
			}
			out[accID] = &acc
		}
	})
	if missing != nil {
		return nil, apperror.NewNotFound("account", *missing)
	}
	return out, nil
}

func (r *accountRepo) List(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	var out []*ledger.Account
	r.s.read(func(st *state) {
		for _, acc := range st.accounts {
			if acc.IsDeleted && !filter.IncludeDeleted {
				continue
			}
			if len(filter.Types) > 0 && !slices.Contains(filter.Types, acc.AccountType) {
				continue
			}
			out = append(out, &acc)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *accountRepo) AdjustBalance(ctx context.Context, accountID id.ID, delta decimal.Decimal) error {
	var err error
	r.s.write(func(st *state) {
		acc, ok := st.accounts[accountID]
		if !ok {
			err = apperror.NewNotFound("account", accountID)
			return
		}
		acc.CurrentBalance = acc.CurrentBalance.Add(delta)
		acc.Touch()
		st.accounts[accountID] = acc
	})
	return err
}

func (r *accountRepo) SetOpeningBalance(ctx context.Context, accountID id.ID, opening, delta decimal.Decimal) error {
	var err error
	r.s.write(func(st *state) {
		acc, ok := st.accounts[accountID]
		if !ok {
			err = apperror.NewNotFound("account", accountID)
			return
		}
		acc.OpeningBalance = opening
		acc.CurrentBalance = acc.CurrentBalance.Add(delta)
		acc.Touch()
		st.accounts[accountID] = acc
	})
	return err
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Insert(ctx context.Context, t *ledger.Transaction) (bool, error) {
	inserted := false
	r.s.write(func(st *state) {
		if t.IdempotencyKey != nil {
			if _, ok := st.txnKeys[*t.IdempotencyKey]; ok {
				return
			}
			st.txnKeys[*t.IdempotencyKey] = t.ID
		}
		st.txns[t.ID] = *t
		st.txnOrder = append(st.txnOrder, t.ID)
		inserted = true
	})
	return inserted, nil
}

func (r *transactionRepo) GetByID(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	var (
		t  ledger.Transaction
		ok bool
	)
	r.s.read(func(st *state) { t, ok = st.txns[txnID] })
	if !ok {
		return nil, apperror.NewNotFound("transaction", txnID)
	}
	return &t, nil
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	return r.GetByID(ctx, txnID)
}

func (r *transactionRepo) MarkDeleted(ctx context.Context, txnID id.ID) error {
	var err error
	r.s.write(func(st *state) {
		t, ok := st.txns[txnID]
		if !ok {
			err = apperror.NewNotFound("transaction", txnID)
			return
		}
		t.MarkDeleted()
		st.txns[txnID] = t
	})
	return err
}

func (r *transactionRepo) List(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	r.s.read(func(st *state) {
		for _, txnID := range st.txnOrder {
			t := st.txns[txnID]
			if matchTransaction(st, t, filter) {
				out = append(out, &t)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *transactionRepo) Totals(ctx context.Context, filter ledger.TransactionFilter) (map[id.ID]ledger.Totals, error) {
	out := make(map[id.ID]ledger.Totals)
	r.s.read(func(st *state) {
		for _, txnID := range st.txnOrder {
			t := st.txns[txnID]
			if !matchTransaction(st, t, filter) {
				continue
			}
			tt := out[t.AccountID]
			if t.TransactionType == ledger.Debit {
				tt.Debit = tt.Debit.Add(t.Amount)
			} else {
				tt.Credit = tt.Credit.Add(t.Amount)
			}
			tt.Count++
			out[t.AccountID] = tt
		}
	})
	return out, nil
}

func matchTransaction(st *state, t ledger.Transaction, f ledger.TransactionFilter) bool {
	if t.IsDeleted {
		return false
	}
	if len(f.AccountIDs) > 0 && !slices.Contains(f.AccountIDs, t.AccountID) {
		return false
	}
	if len(f.AccountTypes) > 0 && !slices.Contains(f.AccountTypes, st.accounts[t.AccountID].AccountType) {
		return false
	}
	if f.PartyID != nil && !id.PtrEqual(f.PartyID, t.PartyID) {
		return false
	}
	if f.ReferenceType != "" && f.ReferenceType != t.ReferenceType {
		return false
	}
	if f.ReferenceID != nil && !id.PtrEqual(f.ReferenceID, t.ReferenceID) {
		return false
	}
	if f.DateFrom != nil && t.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !t.Date.Before(*f.DateTo) {
		return false
	}
	return true
}
