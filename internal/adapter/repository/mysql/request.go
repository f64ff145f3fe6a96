package mysql

import (
	"context"

	"tuition-escrow/internal/domain/loanrequest"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository struct{ db *gorm.DB }

func NewRequestRepository(db *gorm.DB) *RequestRepository { return &RequestRepository{db: db} }

func (r *RequestRepository) Create(ctx context.Context, req *loanrequest.LoanRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) Save(ctx context.Context, req *loanrequest.LoanRequest) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(req).Error
}

func (r *RequestRepository) GetByRequestID(ctx context.Context, requestID string) (*loanrequest.LoanRequest, error) {
	var out loanrequest.LoanRequest
	res := r.db.WithContext(ctx).
		Preload("Installments", bySeq).
		Where("request_id = ?", requestID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, loanrequest.ErrNotFound)
	}
	return &out, nil
}

func (r *RequestRepository) GetByRequestIDForUpdate(ctx context.Context, requestID string) (*loanrequest.LoanRequest, error) {
	var out loanrequest.LoanRequest
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", requestID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, loanrequest.ErrNotFound)
	}
	if err := r.db.WithContext(ctx).Where("loan_request_id = ?", out.ID).Order("seq ASC").Find(&out.Installments).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RequestRepository) ListByStatus(ctx context.Context, statuses []loanrequest.Status, industry string) ([]loanrequest.LoanRequest, error) {
	q := r.db.WithContext(ctx).Preload("Installments", bySeq).Where("status IN ?", statuses)
	if industry != "" {
		q = q.Where("industry = ?", industry)
	}
	var out []loanrequest.LoanRequest
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *RequestRepository) Delete(ctx context.Context, req *loanrequest.LoanRequest) error {
	return r.db.WithContext(ctx).Delete(req).Error
}
