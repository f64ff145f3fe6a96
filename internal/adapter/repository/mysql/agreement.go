package mysql

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/agreement"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgreementRepository struct{ db *gorm.DB }

func NewAgreementRepository(db *gorm.DB) *AgreementRepository { return &AgreementRepository{db: db} }

func (r *AgreementRepository) Create(ctx context.Context, a *agreement.Agreement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AgreementRepository) GetByAgreementID(ctx context.Context, agreementID string) (*agreement.Agreement, error) {
	var out agreement.Agreement
	res := r.db.WithContext(ctx).
		Preload("Installments", bySeq).
		Where("agreement_id = ?", agreementID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, agreement.ErrNotFound)
	}
	return &out, nil
}

func (r *AgreementRepository) GetByAgreementIDForUpdate(ctx context.Context, agreementID string) (*agreement.Agreement, error) {
	var out agreement.Agreement
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("agreement_id = ?", agreementID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, agreement.ErrNotFound)
	}
	if err := r.db.WithContext(ctx).Where("agreement_id = ?", out.ID).Order("seq ASC").Find(&out.Installments).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *AgreementRepository) GetByRequestOffer(ctx context.Context, requestID, offerID string) (*agreement.Agreement, error) {
	var out agreement.Agreement
	res := r.db.WithContext(ctx).
		Preload("Installments", bySeq).
		Where("request_id = ? AND offer_id = ?", requestID, offerID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, agreement.ErrNotFound)
	}
	return &out, nil
}

func (r *AgreementRepository) ExistsForRequest(ctx context.Context, requestID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&agreement.Agreement{}).Where("request_id = ?", requestID).Count(&n).Error
	return n > 0, err
}

func (r *AgreementRepository) Update(ctx context.Context, a *agreement.Agreement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&agreement.Agreement{}).
			Where("id = ? AND version = ?", a.ID, a.Version).
			Updates(map[string]any{
				"amount_paid":        a.AmountPaid,
				"asset_id":           a.AssetID,
				"transfer_offer_ref": a.TransferOfferRef,
				"metadata_uri":       a.MetadataURI,
				"status":             a.Status,
				"status_updated_at":  a.StatusUpdatedAt,
				"version":            a.Version + 1,
				"updated_at":         time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return agreement.ErrStaleVersion
		}
		for i := range a.Installments {
			in := &a.Installments[i]
			err := tx.Model(&agreement.Installment{}).
				Where("id = ?", in.ID).
				Updates(map[string]any{"lock_ref": in.LockRef, "released": in.Released}).Error
			if err != nil {
				return err
			}
		}
		a.Version++
		return nil
	})
}

func (r *AgreementRepository) ListAwaitingRelease(ctx context.Context) ([]agreement.Agreement, error) {
	var out []agreement.Agreement
	err := r.db.WithContext(ctx).
		Preload("Installments", bySeq).
		Where("status = ?", agreement.StatusFunded).
		Where(`EXISTS (SELECT 1 FROM agreement_installments i
			WHERE i.agreement_id = agreements.id AND i.lock_ref IS NOT NULL AND i.released = ?)`, false).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *AgreementRepository) ListByStatus(ctx context.Context, status agreement.Status) ([]agreement.Agreement, error) {
	var out []agreement.Agreement
	err := r.db.WithContext(ctx).
		Preload("Installments", bySeq).
		Where("status = ?", status).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
