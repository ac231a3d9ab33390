package faucet

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	dErrors "faucetd/pkg/domain-errors"
)

// Address is a classic ledger account address. Invariant: the value passed
// format validation. Construct via ParseAddress at trust boundaries; direct
// casting bypasses validation and must only be done with already-trusted input.
type Address string

// addressPattern matches the classic address encoding: an 'r' prefix followed
// by 24-34 base58 characters (ripple alphabet, no 0/O/I/l).
var addressPattern = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

// ParseAddress constructs an Address from external input.
//
// Errors: CodeInvalidBeneficiary when the value is empty or malformed; no
// other errors are expected. A malformed address must never reach a store
// lookup or the ledger, so handlers call this before anything else.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidBeneficiary, "beneficiary address is required")
	}
	if !addressPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidBeneficiary, "invalid beneficiary address")
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }

// DisbursementRequest carries everything the executor needs for one payout.
// Amount and validity window are server configuration, never client input;
// the struct is immutable once constructed.
type DisbursementRequest struct {
	Destination Address
	AssetCode   string
	AssetIssuer string
	Amount      decimal.Decimal

	// ValidityLedgers bounds how many ledger closes the transaction stays
	// valid for. Expressed in ledger-height units rather than wall-clock so a
	// slow network cannot leave the payment pending indefinitely.
	ValidityLedgers uint32
}

// OutcomeStatus is the terminal classification of a disbursement attempt.
type OutcomeStatus string

const (
	// OutcomeSuccess: a terminal success code was observed on a validated ledger.
	OutcomeSuccess OutcomeStatus = "success"

	// OutcomeRejected: a terminal failure code was observed, or the attempt
	// failed before anything was submitted. Nothing moved; retry is safe.
	OutcomeRejected OutcomeStatus = "rejected"

	// OutcomeIndeterminate: the transaction was submitted but no terminal code
	// was observed before the wait bound. It may still land on the ledger:
	// "no confirmation" is not "did not happen". Retry is NOT automatically safe.
	OutcomeIndeterminate OutcomeStatus = "indeterminate"
)

// Outcome is the three-way result of a disbursement attempt.
type Outcome struct {
	Status OutcomeStatus
	TxHash string // set on Success; best-effort on Indeterminate for reconciliation
	Reason string // engine result code or short failure description, log-safe
}

// ClaimResult is what the controller returns for a granted claim.
type ClaimResult struct {
	Granted   bool
	TxHash    string
	GrantedAt time.Time
}
