// Package audit defines the audit event model for grant decisions. Events are
// transport-agnostic so sinks (Kafka, test buffers) can fan out.
package audit

import "time"

// Action identifies what happened. One event is emitted per terminal claim
// outcome; indeterminate events carry the tx hash so a reconciliation pass can
// check them against ledger history before the beneficiary claims again.
type Action string

const (
	ActionGrantIssued               Action = "grant_issued"
	ActionGrantDenied               Action = "grant_denied"
	ActionDisbursementRejected      Action = "disbursement_rejected"
	ActionDisbursementIndeterminate Action = "disbursement_indeterminate"
	ActionGrantCommitFailed         Action = "grant_commit_failed"
	ActionGrantPurged               Action = "grant_purged"
)

// Event is one audit record. Operations category semantics: emission is
// asynchronous and fail-open, losing an event never fails the payout.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	Beneficiary string    `json:"beneficiary,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}
