package sspclient

import "context"

// LightningSendStatus mirrors the status set the SSP reports while a
// preimage-swap Lightning send is in flight (spec 4.6).
type LightningSendStatus string

const (
	LightningSendSucceeded               LightningSendStatus = "SUCCEEDED"
	LightningSendFailed                  LightningSendStatus = "FAILED"
	LightningSendTransferFailed          LightningSendStatus = "TRANSFER_FAILED"
	LightningSendPreimageProvidingFailed LightningSendStatus = "PREIMAGE_PROVIDING_FAILED"
	LightningSendUserSwapReturned        LightningSendStatus = "USER_SWAP_RETURN"
)

// LightningSendResult is returned by RequestLightningSend and refreshed by
// GetLightningSendStatus while the caller polls.
type LightningSendResult struct {
	RequestID string              `json:"request_id"`
	Status    LightningSendStatus `json:"status"`
	Preimage  []byte              `json:"preimage,omitempty"`
}

// RequestLightningSend starts a preimage-swap send of a BOLT-11 invoice.
// The wallet must already have created the hash-locked leaves (spec
// 4.6 step 3, internal/scripts) before calling this.
func (c *Client) RequestLightningSend(ctx context.Context, idempotencyKey, invoice string) (*LightningSendResult, error) {
	var out LightningSendResult
	params := struct {
		Invoice string `json:"invoice"`
	}{invoice}
	if err := c.rpcCall(ctx, "request_lightning_send", idempotencyKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLightningSendStatus polls a previously started send by request id.
func (c *Client) GetLightningSendStatus(ctx context.Context, requestID string) (*LightningSendResult, error) {
	var out LightningSendResult
	params := struct {
		RequestID string `json:"request_id"`
	}{requestID}
	if err := c.rpcCall(ctx, "get_lightning_send_status", "", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LightningReceiveResult carries the invoice the payer should pay and the
// Spark-side transfer id the wallet will later claim (spec 4.6 receive
// flow, claimed via the transfer engine per 4.5).
type LightningReceiveResult struct {
	Invoice    string `json:"invoice"`
	TransferID string `json:"transfer_id"`
}

// RequestLightningReceive asks the SSP for an invoice of amountSat with the
// given memo and optional description hash (used instead of memo when set,
// per BOLT-11 convention).
func (c *Client) RequestLightningReceive(ctx context.Context, idempotencyKey string, amountSat int64, memo string, descriptionHash []byte) (*LightningReceiveResult, error) {
	var out LightningReceiveResult
	params := struct {
		AmountSat       int64  `json:"amount_sat"`
		Memo            string `json:"memo,omitempty"`
		DescriptionHash []byte `json:"description_hash,omitempty"`
	}{amountSat, memo, descriptionHash}
	if err := c.rpcCall(ctx, "request_lightning_receive", idempotencyKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
