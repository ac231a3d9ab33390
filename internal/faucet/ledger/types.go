package ledger

// TrustLine is one relationship line between two accounts for a currency.
type TrustLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Limit    string `json:"limit"`
}

// AccountState carries the pieces of account_info the faucet needs: the next
// transaction sequence for the account and the ledger height the answer was
// validated at.
type AccountState struct {
	Sequence        uint32
	ValidatedLedger uint32
}

// IssuedAmount is an issued-currency amount on the target ledger.
type IssuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// Payment is the unsigned transfer instruction handed to the signer.
// LastLedgerSequence bounds validity in ledger-height units: once the network
// closes a ledger past it, the transaction can never apply.
type Payment struct {
	TransactionType    string       `json:"TransactionType"`
	Account            string       `json:"Account"`
	Destination        string       `json:"Destination"`
	Amount             IssuedAmount `json:"Amount"`
	Fee                string       `json:"Fee"`
	Sequence           uint32       `json:"Sequence"`
	LastLedgerSequence uint32       `json:"LastLedgerSequence"`
	SigningPubKey      string       `json:"SigningPubKey,omitempty"`
	TxnSignature       string       `json:"TxnSignature,omitempty"`
}

// SubmitResult is the preliminary answer from tx submission. Engine results
// are provisional: only a validated ledger makes them terminal.
type SubmitResult struct {
	EngineResult        string
	EngineResultMessage string
}

// Terminal reports whether a preliminary engine result can never apply, so
// polling for validation would be pointless. "tem" codes are malformed
// transactions; "tef" codes failed permanently (e.g. past sequence).
func (r *SubmitResult) Terminal() bool {
	if len(r.EngineResult) < 3 {
		return false
	}
	switch r.EngineResult[:3] {
	case "tem", "tef":
		return true
	}
	return false
}

// TxResult is the status of a transaction looked up by hash.
type TxResult struct {
	Found     bool
	Validated bool
	Result    string // meta transaction result code, e.g. "tesSUCCESS"
}

// Succeeded reports a validated terminal success.
func (r *TxResult) Succeeded() bool {
	return r.Validated && r.Result == "tesSUCCESS"
}
