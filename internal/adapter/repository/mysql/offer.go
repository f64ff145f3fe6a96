package mysql

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/offer"

	"gorm.io/gorm"
)

type OfferRepository struct{ db *gorm.DB }

func NewOfferRepository(db *gorm.DB) *OfferRepository { return &OfferRepository{db: db} }

func (r *OfferRepository) Create(ctx context.Context, o *offer.Offer) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OfferRepository) Transition(ctx context.Context, offerID string, from, to offer.Status, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&offer.Offer{}).
		Where("offer_id = ? AND status = ?", offerID, from).
		Updates(map[string]any{"status": to, "status_updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return offer.ErrNotPending
	}
	return nil
}

func (r *OfferRepository) GetByOfferID(ctx context.Context, offerID string) (*offer.Offer, error) {
	var out offer.Offer
	if err := r.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&out).Error; err != nil {
		return nil, notFound(err, offer.ErrNotFound)
	}
	return &out, nil
}

func (r *OfferRepository) ListByRequest(ctx context.Context, requestID string, status offer.Status) ([]offer.Offer, error) {
	var out []offer.Offer
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, status).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *OfferRepository) SetPendingStatus(ctx context.Context, requestID, keepOfferID string, status offer.Status, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&offer.Offer{}).
		Where("request_id = ? AND status = ? AND offer_id <> ?", requestID, offer.StatusPending, keepOfferID).
		Updates(map[string]any{"status": status, "status_updated_at": at})
	return res.RowsAffected, res.Error
}
