package database

import "time"

// PaymentType distinguishes the direction of a persisted payment row.
type PaymentType string

const (
	PaymentTypeSend    PaymentType = "Send"
	PaymentTypeReceive PaymentType = "Receive"
)

// PaymentStatus is a payment's lifecycle state.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// PaymentMethod is the rail a payment moved over, reported by list_payments
// and used to select details_json's shape.
type PaymentMethod string

const (
	MethodDeposit         PaymentMethod = "Deposit"
	MethodLightning       PaymentMethod = "Lightning"
	MethodCooperativeExit PaymentMethod = "CooperativeExit"
	MethodSparkTransfer   PaymentMethod = "SparkTransfer"
	MethodTokenTransfer   PaymentMethod = "TokenTransfer"
)

// TokenTxType classifies a token-denominated payment row, introduced at
// schema version 18. Rows written before that migration are all Transfer.
type TokenTxType string

const (
	TokenTxTransfer TokenTxType = "Transfer"
	TokenTxMint     TokenTxType = "Mint"
	TokenTxBurn     TokenTxType = "Burn"
)

// Payment is one row of the payments table (spec section 6).
type Payment struct {
	ID          string        `json:"id" db:"id"`
	Type        PaymentType   `json:"type" db:"type"`
	Status      PaymentStatus `json:"status" db:"status"`
	Amount      int64         `json:"amount" db:"amount"`
	Fees        int64         `json:"fees" db:"fees"`
	Method      PaymentMethod `json:"method" db:"method"`
	Timestamp   time.Time     `json:"timestamp" db:"timestamp"`
	DetailsJSON []byte        `json:"details_json" db:"details_json"`
	TxType      TokenTxType   `json:"tx_type" db:"tx_type"`
}

// PaymentMetadata is one row of payment_metadata, populated only for
// LNURL-pay sends (spec section 4.10's SuccessAction handling).
type PaymentMetadata struct {
	PaymentID        string  `json:"payment_id" db:"payment_id"`
	LnurlPayInfoJSON []byte  `json:"lnurl_pay_info_json,omitempty" db:"lnurl_pay_info_json"`
	LnurlDescription *string `json:"lnurl_description,omitempty" db:"lnurl_description"`
}

// UnclaimedDeposit is one row of unclaimed_deposits: a static-deposit UTXO
// seen on chain but not yet claimed or refunded (spec section 4.7).
type UnclaimedDeposit struct {
	TxID           string  `json:"txid" db:"txid"`
	Vout           int32   `json:"vout" db:"vout"`
	AmountSat      int64   `json:"amount_sats" db:"amount_sats"`
	ClaimErrorJSON []byte  `json:"claim_error_json,omitempty" db:"claim_error_json"`
	RefundTx       *string `json:"refund_tx,omitempty" db:"refund_tx"`
	RefundTxID     *string `json:"refund_tx_id,omitempty" db:"refund_tx_id"`
}

// PendingTransfer is one row of pending_transfers: an outgoing transfer
// whose key tweaks and refund signatures are committed but that has not
// yet been durably delivered or finalized, so it can resume from
// KEY_TWEAKS_PREPARED on reconnect instead of re-selecting leaves
// (spec 4.5).
type PendingTransfer struct {
	ID       string `json:"id" db:"id"`
	Status   string `json:"status" db:"status"`
	DataJSON []byte `json:"data_json" db:"data_json"`
}

// Setting is one key/value row of the settings table (e.g. lightning
// address registration, last-known sync revision cursor).
type Setting struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}

// SyncRecord is one row of sync_records: the materialized local view of a
// synced entity (spec section 4.11).
type SyncRecord struct {
	Type          string `json:"type" db:"type"`
	ID            string `json:"id" db:"id"`
	Revision      int64  `json:"revision" db:"revision"`
	SchemaVersion int32  `json:"schema_version" db:"schema_version"`
	DataJSON      []byte `json:"data_json" db:"data_json"`
}
