// Package ports defines shared interfaces for the faucet module.
// Interfaces are placed here when consumed by multiple components to avoid duplication.
package ports

import (
	"context"
	"time"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/ledger"
	"faucetd/pkg/platform/audit"
)

// GrantStore is the claim ledger: the source of truth for "already claimed".
type GrantStore interface {
	// LastGrant returns when the beneficiary was last granted, or nil when it
	// never was. A missing record is "not yet claimed", never "ineligible".
	LastGrant(ctx context.Context, addr faucet.Address) (*time.Time, error)

	// RecordGrant upserts the grant timestamp for a beneficiary. Latest write
	// wins; calling twice with the same timestamp is a no-op at the storage layer.
	RecordGrant(ctx context.Context, addr faucet.Address, grantedAt time.Time) error

	// PurgeGrant removes the record for a beneficiary (administrative only).
	// Returns sentinel.ErrNotFound when no record exists.
	PurgeGrant(ctx context.Context, addr faucet.Address) error
}

// LedgerGateway is the external ledger client surface the faucet depends on.
// All calls are remote and may fail or hang; callers bound them with contexts.
type LedgerGateway interface {
	// AccountLines returns the relationship lines between an account and a peer
	// issuer, as of the last validated ledger.
	AccountLines(ctx context.Context, account, peer string) ([]ledger.TrustLine, error)

	// AccountState returns the sending authority's sequence number and the
	// current validated ledger index.
	AccountState(ctx context.Context, account string) (*ledger.AccountState, error)

	// BaseFee returns the current base transaction fee in drops.
	BaseFee(ctx context.Context) (string, error)

	// Submit broadcasts a signed transaction blob and returns the preliminary
	// engine result code. A preliminary code is not finality.
	Submit(ctx context.Context, txBlob string) (*ledger.SubmitResult, error)

	// TxStatus looks up a transaction by hash. Validated==true with a terminal
	// result code is the only finality signal.
	TxStatus(ctx context.Context, hash string) (*ledger.TxResult, error)
}

// Signer holds the disbursement authority's key material. The faucet never
// sees the private key, only the signing capability.
type Signer interface {
	// Address returns the authority's account address.
	Address() faucet.Address

	// Sign serializes and signs an unsigned payment, returning the submit blob
	// and the transaction hash used for status polling.
	Sign(tx *ledger.Payment) (blob string, hash string, err error)
}

// AuditPublisher emits audit events for grant decisions. Implementations are
// fail-open: an emit failure must never fail a payout.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}
