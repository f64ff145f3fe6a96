package loanrequest

import (
	"time"

	"tuition-escrow/internal/domain/failure"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusOpen             Status = "OPEN"
	StatusUnderNegotiation Status = "UNDER_NEGOTIATION"
	StatusAccepted         Status = "ACCEPTED"
	StatusClosed           Status = "CLOSED"
)

var (
	ErrNotFound          = failure.NotFound("request_not_found", "loan request not found")
	ErrIncomplete        = failure.Validation("request_incomplete", "loan request is missing required fields")
	ErrScheduleMismatch  = failure.Validation("schedule_total_mismatch", "installment amounts must sum to the total amount")
	ErrInvalidTransition = failure.Validation("request_invalid_status", "loan request status does not allow this action")
	ErrAlreadyAccepted   = failure.Validation("request_already_accepted", "loan request already accepted")
	ErrNotDeletable      = failure.Validation("request_not_deletable", "loan request can only be deleted while DRAFT or OPEN without an agreement")
)

type LoanRequest struct {
	ID              uint64          `gorm:"primaryKey;column:id" json:"-"`
	RequestID       string          `gorm:"size:32;uniqueIndex:ux_loan_requests_request_id" json:"request_id"`
	StudentAddress  string          `gorm:"size:64;index:idx_loan_requests_student" json:"student_address"`
	StudentName     string          `gorm:"size:128" json:"student_name"`
	SchoolAddress   string          `gorm:"size:64" json:"school_address"`
	Program         string          `gorm:"size:255" json:"program"`
	TotalAmount     decimal.Decimal `gorm:"type:varchar(40)" json:"total_amount"`
	Currency        string          `gorm:"size:8;default:XRP" json:"currency"`
	GraduationDate  *time.Time      `gorm:"type:date" json:"graduation_date,omitempty"`
	Industry        string          `gorm:"size:64;index:idx_loan_requests_status_industry,priority:2" json:"industry"`
	Description     string          `gorm:"type:text" json:"description"`
	Status          Status          `gorm:"size:24;index:idx_loan_requests_status_industry,priority:1" json:"status"`
	StatusUpdatedAt time.Time       `json:"status_updated_at"`
	Installments    []Installment   `gorm:"foreignKey:LoanRequestID" json:"installments"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (LoanRequest) TableName() string { return "loan_requests" }

type Installment struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanRequestID uint64          `gorm:"index:idx_loan_request_installments_request" json:"-"`
	Seq           int             `json:"index"`
	Amount        decimal.Decimal `gorm:"type:varchar(40)" json:"amount"`
	DueDate       time.Time       `gorm:"type:date" json:"due_date"`
}

func (Installment) TableName() string { return "loan_request_installments" }

// CheckComplete enforces what a non-DRAFT request must carry.
func (r *LoanRequest) CheckComplete() error {
	switch {
	case r.StudentAddress == "", r.StudentName == "", r.SchoolAddress == "", r.Program == "":
		return ErrIncomplete
	case r.Industry == "", r.GraduationDate == nil:
		return ErrIncomplete
	case !r.TotalAmount.IsPositive(), len(r.Installments) == 0:
		return ErrIncomplete
	}
	sum := decimal.Zero
	for _, in := range r.Installments {
		if !in.Amount.IsPositive() || in.DueDate.IsZero() {
			return failure.Wrap(ErrIncomplete, "installment %d", in.Seq)
		}
		sum = sum.Add(in.Amount)
	}
	if !sum.Equal(r.TotalAmount) {
		return failure.Wrap(ErrScheduleMismatch, "sum %s, total %s", sum, r.TotalAmount)
	}
	return nil
}

// Acceptable reports whether an offer on this request may still be accepted.
func (r *LoanRequest) Acceptable() bool {
	return r.Status == StatusOpen || r.Status == StatusUnderNegotiation
}

func (r *LoanRequest) SetStatus(s Status, at time.Time) {
	r.Status = s
	r.StatusUpdatedAt = at
}
