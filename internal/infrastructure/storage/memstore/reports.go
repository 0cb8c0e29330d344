package memstore

import (
	"context"
	"sort"
	"time"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/reports"
)

type reportRepo struct{ s *Store }

func (r *reportRepo) InvoiceBalances(ctx context.Context, partyID *id.ID) ([]reports.InvoiceBalance, error) {
	var out []reports.InvoiceBalance
	r.s.read(func(st *state) {
		for _, inv := range st.invoices {
			if inv.IsDeleted {
				continue
			}
			if partyID != nil && !id.PtrEqual(partyID, inv.PartyID) {
				continue
			}
			out = append(out, reports.InvoiceBalance{
				InvoiceID:  inv.ID,
				Number:     inv.Number,
				PartyID:    inv.PartyID,
				PartyName:  inv.PartyName,
				IsWalkIn:   inv.IsWalkIn,
				WalkInName: inv.WalkInName,
				BalanceDue: inv.BalanceDue,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *reportRepo) PurchaseBalances(ctx context.Context, partyID id.ID) ([]reports.PurchaseBalance, error) {
	var out []reports.PurchaseBalance
	r.s.read(func(st *state) {
		for _, p := range st.purchases {
			if p.IsDeleted || !id.PtrEqual(&partyID, p.PartyID) {
				continue
			}
			out = append(out, reports.PurchaseBalance{
				PurchaseID:      p.ID,
				Number:          p.Number,
				BalanceDueMoney: p.BalanceDueMoney,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *reportRepo) GetClosing(ctx context.Context, day time.Time) (*reports.DailyClosing, error) {
	var (
		c  reports.DailyClosing
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.closings[reports.Day(day)] })
	if !ok {
		return nil, apperror.NewNotFound("daily_closing", day.Format(time.DateOnly))
	}
	return &c, nil
}

func (r *reportRepo) LastClosingBefore(ctx context.Context, day time.Time) (*reports.DailyClosing, error) {
	var last *reports.DailyClosing
	r.s.read(func(st *state) {
		for d, c := range st.closings {
			if d.Before(day) && (last == nil || d.After(last.Date)) {
				last = &c
			}
		}
	})
	return last, nil
}

func (r *reportRepo) CreateClosing(ctx context.Context, c *reports.DailyClosing) error {
	var err error
	r.s.write(func(st *state) {
		day := reports.Day(c.Date)
		if _, ok := st.closings[day]; ok {
			err = apperror.NewDayClosed(day)
			return
		}
		st.closings[day] = *c
	})
	return err
}
