package mysql

import (
	"context"
	"errors"
	"time"

	"tuition-escrow/internal/domain/repayment"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RepaymentRepository struct{ db *gorm.DB }

func NewRepaymentRepository(db *gorm.DB) *RepaymentRepository { return &RepaymentRepository{db: db} }

// Record relies on the unique tx_hash index; the gorm session must have
// TranslateError enabled so the driver error surfaces as gorm.ErrDuplicatedKey.
func (r *RepaymentRepository) Record(ctx context.Context, p *repayment.Repayment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repayment.ErrDuplicate
	}
	return err
}

func (r *RepaymentRepository) GetByTxHash(ctx context.Context, txHash string) (*repayment.Repayment, error) {
	var out repayment.Repayment
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&out).Error; err != nil {
		return nil, notFound(err, repayment.ErrNotFound)
	}
	return &out, nil
}

func (r *RepaymentRepository) Cursor(ctx context.Context, account string) (uint64, bool, error) {
	var c repayment.Cursor
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return c.LedgerIndex, true, nil
}

func (r *RepaymentRepository) AdvanceCursor(ctx context.Context, account string, ledgerIndex uint64) error {
	cur, ok, err := r.Cursor(ctx, account)
	if err != nil {
		return err
	}
	if ok && cur >= ledgerIndex {
		return nil
	}
	c := repayment.Cursor{Account: account, LedgerIndex: ledgerIndex, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"ledger_index", "updated_at"}),
	}).Create(&c).Error
}
