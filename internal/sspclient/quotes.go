package sspclient

import "context"

// LeavesSwapQuote is the SSP's offer to swap a set of leaf denominations
// for a target set, used by the leaf-store optimizer and by the token/BTC
// conversion pipeline.
type LeavesSwapQuote struct {
	QuoteID        string `json:"quote_id"`
	TargetValueSat int64  `json:"target_value_sat"`
	FeeSat         int64  `json:"fee_sat"`
	ExpiresAtUnix  int64  `json:"expires_at_unix"`
}

// RequestLeavesSwapQuote asks the SSP to price a swap of leaves summing to
// inputValueSat into a leaf set summing to targetValueSat.
func (c *Client) RequestLeavesSwapQuote(ctx context.Context, inputValueSat, targetValueSat int64) (*LeavesSwapQuote, error) {
	idemKey, err := NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	var out LeavesSwapQuote
	params := struct {
		InputValueSat  int64 `json:"input_value_sat"`
		TargetValueSat int64 `json:"target_value_sat"`
	}{inputValueSat, targetValueSat}
	if err := c.rpcCall(ctx, "request_leaves_swap_quote", idemKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CoopExitQuote prices a cooperative exit to an on-chain address. Expiry is
// 48h on mainnet, 5min on every other network (spec 4.7).
type CoopExitQuote struct {
	QuoteID       string `json:"quote_id"`
	FeeSat        int64  `json:"fee_sat"`
	ExpiresAtUnix int64  `json:"expires_at_unix"`
}

// RequestCoopExitQuote prices an exit of totalValueSat to address at the
// given speed ("fast"|"medium"|"slow").
func (c *Client) RequestCoopExitQuote(ctx context.Context, totalValueSat int64, address, speed string) (*CoopExitQuote, error) {
	idemKey, err := NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	var out CoopExitQuote
	params := struct {
		TotalValueSat int64  `json:"total_value_sat"`
		Address       string `json:"address"`
		Speed         string `json:"speed"`
	}{totalValueSat, address, speed}
	if err := c.rpcCall(ctx, "request_coop_exit_quote", idemKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestCoopExit submits the client+operator co-signed connector-plus-exit
// transaction for broadcast once accepted.
func (c *Client) RequestCoopExit(ctx context.Context, idempotencyKey, quoteID string, signedTxHex string) error {
	params := struct {
		QuoteID     string `json:"quote_id"`
		SignedTxHex string `json:"signed_tx_hex"`
	}{quoteID, signedTxHex}
	return c.rpcCall(ctx, "coop_exit", idempotencyKey, params, nil)
}

// DepositClaimQuote prices converting a confirmed on-chain static-deposit
// UTXO into a Spark leaf.
type DepositClaimQuote struct {
	QuoteID string `json:"quote_id"`
	FeeSat  int64  `json:"fee_sat"`
}

// RequestDepositClaimQuote prices claiming the UTXO at txid:vout.
func (c *Client) RequestDepositClaimQuote(ctx context.Context, txid string, vout uint32) (*DepositClaimQuote, error) {
	idemKey, err := NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	var out DepositClaimQuote
	params := struct {
		Txid string `json:"txid"`
		Vout uint32 `json:"vout"`
	}{txid, vout}
	if err := c.rpcCall(ctx, "request_deposit_claim_quote", idemKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimDeposit accepts quoteID (fee already checked against the caller's
// max_fee) and returns the transfer id the wallet should claim via the
// transfer engine.
func (c *Client) ClaimDeposit(ctx context.Context, idempotencyKey, quoteID string) (transferID string, err error) {
	var out struct {
		TransferID string `json:"transfer_id"`
	}
	params := struct {
		QuoteID string `json:"quote_id"`
	}{quoteID}
	if err := c.rpcCall(ctx, "claim_deposit", idempotencyKey, params, &out); err != nil {
		return "", err
	}
	return out.TransferID, nil
}

// RequestTokenQuote prices one token in sats, the conversion pipeline's
// quote source for slippage detection (spec 4.12). This is a token-market
// price between the two in-system assets, not the fiat rate vending spec
// section 1 excludes.
func (c *Client) RequestTokenQuote(ctx context.Context, tokenIdentifier string) (satsPerToken float64, err error) {
	var out struct {
		SatsPerToken float64 `json:"sats_per_token"`
	}
	params := struct {
		TokenIdentifier string `json:"token_identifier"`
	}{tokenIdentifier}
	if err := c.rpcCall(ctx, "request_token_quote", "", params, &out); err != nil {
		return 0, err
	}
	return out.SatsPerToken, nil
}

// TokenQuoter adapts Client to internal/conversion.Quoter, whose method
// name (SatsPerToken) doesn't match the RPC-shaped RequestTokenQuote.
type TokenQuoter struct {
	Client *Client
}

// SatsPerToken implements internal/conversion.Quoter.
func (q TokenQuoter) SatsPerToken(ctx context.Context, tokenIdentifier string) (float64, error) {
	return q.Client.RequestTokenQuote(ctx, tokenIdentifier)
}
