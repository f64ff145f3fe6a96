package agreement

import "tuition-escrow/internal/domain/failure"

var (
	ErrNotFound          = failure.NotFound("agreement_not_found", "loan agreement not found")
	ErrInvalidTransition = failure.Validation("agreement_invalid_status", "agreement status does not allow this action")
	ErrAssetMissing      = failure.Validation("asset_missing", "asset has not been recorded")
	ErrMetadataMissing   = failure.Validation("metadata_missing", "agreement metadata has not been published")
	ErrTransferMissing   = failure.Validation("transfer_offer_missing", "transfer offer has not been recorded")
	ErrInstallmentIndex  = failure.Validation("installment_index_invalid", "installment index out of range")
	ErrNotLocked         = failure.Validation("installment_not_locked", "installment has no lock")
	ErrLockNotOnLedger   = failure.Validation("lock_not_on_ledger", "no fund lock with this reference is owned by the company; record the escrow object index, not the transaction hash")
	ErrLockTerms         = failure.Validation("lock_terms_mismatch", "fund lock on the ledger does not match the installment")

	ErrAssetMismatch    = failure.Conflict("asset_mismatch", "a different asset id is already recorded")
	ErrTransferMismatch = failure.Conflict("transfer_offer_mismatch", "a different transfer offer is already recorded")
	ErrLockMismatch     = failure.Conflict("lock_ref_mismatch", "a different lock is already recorded for this installment")
	ErrStaleVersion     = failure.Conflict("concurrent_update", "agreement was modified concurrently")
)
