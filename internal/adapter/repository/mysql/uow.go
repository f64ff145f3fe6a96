package mysql

import (
	"context"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

// Repos builds repositories bound to db (a plain handle or a transaction).
func Repos(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Requests:   &RequestRepository{db: db},
		Offers:     &OfferRepository{db: db},
		Agreements: &AgreementRepository{db: db},
		Repayments: &RepaymentRepository{db: db},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repos(tx))
	})
}

func (u *GormUoW) WithinAgreementTx(ctx context.Context, agreementID string, fn func(r uow.Repos, a *agreement.Agreement) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := Repos(tx)
		// lock the agreement row up-front so status checks and writes are linear
		a, err := r.Agreements.GetByAgreementIDForUpdate(ctx, agreementID)
		if err != nil {
			return err
		}
		return fn(r, a)
	})
}
