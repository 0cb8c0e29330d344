package document_repo

import (
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/infrastructure/storage/postgres"
)

const purchasesTable = "purchases"

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct {
	*BaseDocumentRepo[purchase.Purchase]
}

var _ purchase.Repository = (*PurchaseRepo)(nil)

// NewPurchaseRepo creates a new purchase repository.
func NewPurchaseRepo(txm *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[purchase.Purchase](txm, purchasesTable, purchase.EntityType),
	}
}
