package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionDirection indicates whether money left or entered the account.
type TransactionDirection string

const (
	// DirectionDebit represents money leaving the account.
	DirectionDebit TransactionDirection = "debit"
	// DirectionCredit represents money entering the account.
	DirectionCredit TransactionDirection = "credit"
)

// Channel identifies the payment rail a transaction travelled on, when the
// statement parser was able to extract it.
type Channel string

// Channel constants.
const (
	ChannelUPI  Channel = "UPI"
	ChannelATM  Channel = "ATM"
	ChannelNACH Channel = "NACH"
	ChannelCard Channel = "CARD"
	ChannelIMPS Channel = "IMPS"
	ChannelNEFT Channel = "NEFT"
)

// Transaction represents a single imported bank-statement record.
// Transactions are immutable facts: once created they are never mutated.
type Transaction struct {
	Date        time.Time
	ID          string
	UserID      string
	ExternalID  string // bank-assigned reference, if any
	Description string // raw free-text description
	MerchantRaw string // raw merchant string as it appeared on the statement
	Currency    string
	Hash        string
	Amount      float64
	Direction   TransactionDirection

	// Optional parsed metadata, present only when the upstream parser
	// extracted richer fields from the statement.
	Channel      Channel
	Counterparty string
	ACHEntity    string
	MCC          string // merchant category code
}

// HasParsedMetadata reports whether the transaction carries the richer
// parsed fields that the generic enrichment rules operate on.
func (t *Transaction) HasParsedMetadata() bool {
	return t.Channel != "" || t.Counterparty != "" || t.ACHEntity != "" || t.MCC != ""
}

// GenerateHash creates the deduplication key for an imported record.
// normalizedMerchant must already be canonicalized so that spelling noise in
// the merchant string does not defeat deduplication.
func (t *Transaction) GenerateHash(normalizedMerchant string) string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s:%s",
		t.UserID,
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Direction,
		t.ExternalID,
		normalizedMerchant)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
