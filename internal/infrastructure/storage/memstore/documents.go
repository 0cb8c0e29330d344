package memstore

import (
	"context"
	"slices"
	"sort"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/domain"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/jobcard"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/documents/returns"
)

// docTable is the shared implementation of the document repositories.
type docTable[T any] struct {
	s      *Store
	entity string
	rows   func(st *state) map[id.ID]T
	header func(doc *T) (*entity.Document, *entity.Counterparty, string)
	clone  func(doc T) T
}

func (t docTable[T]) create(doc *T) error {
	if err := precision.Normalize(doc); err != nil {
		return apperror.NewInternal(err)
	}
	d, _, _ := t.header(doc)
	var err error
	t.s.write(func(st *state) {
		rows := t.rows(st)
		if _, ok := rows[d.ID]; ok {
			err = apperror.NewConflict(t.entity + " already exists")
			return
		}
		for _, existing := range rows {
			if ed, _, _ := t.header(&existing); d.Number != "" && ed.Number == d.Number {
				err = apperror.NewConflict(t.entity + " number already exists").WithDetail("number", d.Number)
				return
			}
		}
		rows[d.ID] = t.clone(*doc)
	})
	return err
}

func (t docTable[T]) get(docID id.ID) (*T, error) {
	var (
		doc T
		ok  bool
	)
	t.s.read(func(st *state) { doc, ok = t.rows(st)[docID] })
	if !ok {
		return nil, apperror.NewNotFound(t.entity, docID)
	}
	out := t.clone(doc)
	return &out, nil
}

func (t docTable[T]) update(doc *T) error {
	if err := precision.Normalize(doc); err != nil {
		return apperror.NewInternal(err)
	}
	d, _, _ := t.header(doc)
	var err error
	t.s.write(func(st *state) {
		rows := t.rows(st)
		if _, ok := rows[d.ID]; !ok {
			err = apperror.NewNotFound(t.entity, d.ID)
			return
		}
		rows[d.ID] = t.clone(*doc)
	})
	return err
}

func (t docTable[T]) list(f domain.DocumentFilter) []*T {
	var out []*T
	t.s.read(func(st *state) {
		for _, row := range t.rows(st) {
			doc := t.clone(row)
			d, cp, status := t.header(&doc)
			if d.IsDeleted && !f.IncludeDeleted {
				continue
			}
			if f.PartyID != nil && !id.PtrEqual(f.PartyID, cp.PartyID) {
				continue
			}
			if f.Status != "" && f.Status != status {
				continue
			}
			if f.DateFrom != nil && d.Date.Before(*f.DateFrom) {
				continue
			}
			if f.DateTo != nil && !d.Date.Before(*f.DateTo) {
				continue
			}
			out = append(out, &doc)
		}
	})

	sort.Slice(out, func(i, j int) bool {
		a, _, _ := t.header(out[i])
		b, _, _ := t.header(out[j])
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// --- purchases ---

type purchaseRepo struct{ s *Store }

func (r *purchaseRepo) table() docTable[purchase.Purchase] {
	return docTable[purchase.Purchase]{
		s:      r.s,
		entity: purchase.EntityType,
		rows:   func(st *state) map[id.ID]purchase.Purchase { return st.purchases },
		header: func(p *purchase.Purchase) (*entity.Document, *entity.Counterparty, string) {
			return &p.Document, &p.Counterparty, string(p.Status)
		},
		clone: func(p purchase.Purchase) purchase.Purchase {
			p.Items = slices.Clone(p.Items)
			return p
		},
	}
}

func (r *purchaseRepo) Create(ctx context.Context, doc *purchase.Purchase) error {
	return r.table().create(doc)
}

func (r *purchaseRepo) GetByID(ctx context.Context, docID id.ID) (*purchase.Purchase, error) {
	return r.table().get(docID)
}

func (r *purchaseRepo) Update(ctx context.Context, doc *purchase.Purchase) error {
	return r.table().update(doc)
}

func (r *purchaseRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*purchase.Purchase, error) {
	return r.table().list(filter), nil
}

func (r *purchaseRepo) GetForUpdate(ctx context.Context, docID id.ID) (*purchase.Purchase, error) {
	return r.table().get(docID)
}

// --- invoices ---

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) table() docTable[invoice.Invoice] {
	return docTable[invoice.Invoice]{
		s:      r.s,
		entity: invoice.EntityType,
		rows:   func(st *state) map[id.ID]invoice.Invoice { return st.invoices },
		header: func(inv *invoice.Invoice) (*entity.Document, *entity.Counterparty, string) {
			return &inv.Document, &inv.Counterparty, string(inv.Status)
		},
		clone: func(inv invoice.Invoice) invoice.Invoice {
			inv.Items = slices.Clone(inv.Items)
			inv.InitialPayments = slices.Clone(inv.InitialPayments)
			return inv
		},
	}
}

func (r *invoiceRepo) Create(ctx context.Context, doc *invoice.Invoice) error {
	return r.table().create(doc)
}

func (r *invoiceRepo) GetByID(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.table().get(docID)
}

func (r *invoiceRepo) Update(ctx context.Context, doc *invoice.Invoice) error {
	return r.table().update(doc)
}

func (r *invoiceRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*invoice.Invoice, error) {
	return r.table().list(filter), nil
}

func (r *invoiceRepo) GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.table().get(docID)
}

// --- job cards ---

type jobCardRepo struct{ s *Store }

func (r *jobCardRepo) table() docTable[jobcard.JobCard] {
	return docTable[jobcard.JobCard]{
		s:      r.s,
		entity: jobcard.EntityType,
		rows:   func(st *state) map[id.ID]jobcard.JobCard { return st.jobCards },
		header: func(j *jobcard.JobCard) (*entity.Document, *entity.Counterparty, string) {
			return &j.Document, &j.Counterparty, string(j.Status)
		},
		clone: func(j jobcard.JobCard) jobcard.JobCard {
			j.Items = slices.Clone(j.Items)
			return j
		},
	}
}

func (r *jobCardRepo) Create(ctx context.Context, doc *jobcard.JobCard) error {
	return r.table().create(doc)
}

func (r *jobCardRepo) GetByID(ctx context.Context, docID id.ID) (*jobcard.JobCard, error) {
	return r.table().get(docID)
}

func (r *jobCardRepo) Update(ctx context.Context, doc *jobcard.JobCard) error {
	return r.table().update(doc)
}

func (r *jobCardRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*jobcard.JobCard, error) {
	return r.table().list(filter), nil
}

func (r *jobCardRepo) GetForUpdate(ctx context.Context, docID id.ID) (*jobcard.JobCard, error) {
	return r.table().get(docID)
}

// --- returns ---

type returnRepo struct{ s *Store }

func (r *returnRepo) table() docTable[returns.Return] {
	return docTable[returns.Return]{
		s:      r.s,
		entity: returns.EntityType,
		rows:   func(st *state) map[id.ID]returns.Return { return st.returns },
		header: func(ret *returns.Return) (*entity.Document, *entity.Counterparty, string) {
			return &ret.Document, &ret.Counterparty, string(ret.Status)
		},
		clone: func(ret returns.Return) returns.Return {
			ret.Items = slices.Clone(ret.Items)
			return ret
		},
	}
}

func (r *returnRepo) Create(ctx context.Context, doc *returns.Return) error {
	return r.table().create(doc)
}

func (r *returnRepo) GetByID(ctx context.Context, docID id.ID) (*returns.Return, error) {
	return r.table().get(docID)
}

func (r *returnRepo) Update(ctx context.Context, doc *returns.Return) error {
	return r.table().update(doc)
}

func (r *returnRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*returns.Return, error) {
	return r.table().list(filter), nil
}

func (r *returnRepo) GetForUpdate(ctx context.Context, docID id.ID) (*returns.Return, error) {
	return r.table().get(docID)
}

func (r *returnRepo) SumFinalized(ctx context.Context, refType string, refID id.ID) (returns.Totals, error) {
	var totals returns.Totals
	r.s.read(func(st *state) {
		for _, ret := range st.returns {
			if ret.IsDeleted || ret.Status != returns.StatusFinalized {
				continue
			}
			if ret.ReferenceType != refType || ret.ReferenceID != refID {
				continue
			}
			totals.Amount = totals.Amount.Add(ret.TotalAmount)
			totals.Weight = totals.Weight.Add(ret.TotalWeightGrams)
			totals.Count++
		}
	})
	return totals, nil
}
