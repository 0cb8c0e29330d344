package document_repo

import (
	"goldshop/internal/domain/documents/jobcard"
	"goldshop/internal/infrastructure/storage/postgres"
)

const jobCardsTable = "job_cards"

// JobCardRepo implements jobcard.Repository.
type JobCardRepo struct {
	*BaseDocumentRepo[jobcard.JobCard]
}

var _ jobcard.Repository = (*JobCardRepo)(nil)

// NewJobCardRepo creates a new job card repository.
func NewJobCardRepo(txm *postgres.TxManager) *JobCardRepo {
	return &JobCardRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[jobcard.JobCard](txm, jobCardsTable, jobcard.EntityType),
	}
}
