package memstore

import (
	"context"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
)

type goldRepo struct{ s *Store }

func (r *goldRepo) Insert(ctx context.Context, e *goldledger.Entry) (bool, error) {
	inserted := false
	r.s.write(func(st *state) {
		if e.IdempotencyKey != "" {
			if _, ok := st.goldKeys[e.IdempotencyKey]; ok {
				return
			}
			st.goldKeys[e.IdempotencyKey] = len(st.gold)
		}
		st.gold = append(st.gold, *e)
		inserted = true
	})
	return inserted, nil
}

func (r *goldRepo) GetByIdempotencyKey(ctx context.Context, key string) (*goldledger.Entry, error) {
	var (
		e  goldledger.Entry
		ok bool
	)
	r.s.read(func(st *state) {
		var i int
		if i, ok = st.goldKeys[key]; ok {
			e = st.gold[i]
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("gold_ledger", key)
	}
	return &e, nil
}

func (r *goldRepo) ListByParty(ctx context.Context, partyID id.ID) ([]*goldledger.Entry, error) {
	return r.list(func(e goldledger.Entry) bool { return e.PartyID == partyID }), nil
}

func (r *goldRepo) ListByRecorder(ctx context.Context, recorderID id.ID) ([]*goldledger.Entry, error) {
	return r.list(func(e goldledger.Entry) bool { return id.PtrEqual(e.RecorderID, &recorderID) }), nil
}

func (r *goldRepo) list(match func(goldledger.Entry) bool) []*goldledger.Entry {
	var out []*goldledger.Entry
	r.s.read(func(st *state) {
		for _, e := range st.gold {
			if !e.IsDeleted && match(e) {
				out = append(out, &e)
			}
		}
	})
	return out
}

func (r *goldRepo) TotalsByParty(ctx context.Context, partyID id.ID) (goldledger.Totals, error) {
	totals := goldledger.Totals{In: decimal.Zero, Out: decimal.Zero}
	for _, e := range r.list(func(e goldledger.Entry) bool { return e.PartyID == partyID }) {
		if e.Type == entity.DirectionIn {
			totals.In = totals.In.Add(e.WeightGrams)
		} else {
			totals.Out = totals.Out.Add(e.WeightGrams)
		}
		totals.Count++
	}
	return totals, nil
}

type stockRepo struct{ s *Store }

func (r *stockRepo) CreateMovements(ctx context.Context, movements []*stock.Movement) (int, error) {
	inserted := 0
	r.s.write(func(st *state) {
		for _, m := range movements {
			if m.IdempotencyKey != "" {
				if _, ok := st.stockKeys[m.IdempotencyKey]; ok {
					continue
				}
				st.stockKeys[m.IdempotencyKey] = struct{}{}
			}
			st.stock = append(st.stock, *m)
			inserted++
		}
	})
	return inserted, nil
}

func (r *stockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]*stock.Movement, error) {
	var out []*stock.Movement
	r.s.read(func(st *state) {
		for _, m := range st.stock {
			if !m.IsDeleted && id.PtrEqual(m.RecorderID, &recorderID) {
				out = append(out, &m)
			}
		}
	})
	return out, nil
}

func (r *stockRepo) GetHeaderTotals(ctx context.Context, headerID id.ID) (stock.HeaderTotals, error) {
	totals := stock.HeaderTotals{HeaderID: headerID, Weight: decimal.Zero}
	r.s.read(func(st *state) {
		for _, m := range st.stock {
			if !m.IsDeleted && m.HeaderID == headerID {
				totals.Qty += m.QtyDelta
				totals.Weight = totals.Weight.Add(m.WeightDelta)
			}
		}
	})
	return totals, nil
}
