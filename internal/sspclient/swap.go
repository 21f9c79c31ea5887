package sspclient

import "context"

// SwapAdaptedSignature is one leaf's masked refund signature plus its
// adaptor public key, submitted as part of the leaf denomination
// rebalancing protocol (spec 4.8 step 2).
type SwapAdaptedSignature struct {
	NodeID    string `json:"node_id"`
	RBytes    []byte `json:"r"`
	SBytes    []byte `json:"s"`
	AdaptorPK []byte `json:"adaptor_pk"`
}

// SwapLeafDenomination is one leaf of the new denomination set the SSP
// hands back once it accepts a swap's adapted signatures.
type SwapLeafDenomination struct {
	NodeID   string `json:"node_id"`
	ValueSat int64  `json:"value_sat"`
}

// SwapAcceptance is the SSP's response once it has validated the adapted
// signatures and minted the swap-leaves of the requested denominations,
// minus its fee (spec 4.8 step 3).
type SwapAcceptance struct {
	SwapID    string                 `json:"swap_id"`
	NewLeaves []SwapLeafDenomination `json:"new_leaves"`
	FeeSat    int64                  `json:"fee_sat"`
}

// SubmitSwapAdaptedSignatures hands the SSP the adapted refund signatures
// for quoteID. The SSP cannot broadcast anything from these alone — each
// one is masked by a secret only the wallet holds — so this call is safe
// to retry under idempotencyKey.
func (c *Client) SubmitSwapAdaptedSignatures(ctx context.Context, idempotencyKey, quoteID string, sigs []SwapAdaptedSignature) (*SwapAcceptance, error) {
	var out SwapAcceptance
	params := struct {
		QuoteID    string                  `json:"quote_id"`
		Signatures []SwapAdaptedSignature  `json:"signatures"`
	}{quoteID, sigs}
	if err := c.rpcCall(ctx, "submit_swap_adapted_signatures", idempotencyKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevealSwapSecrets hands the SSP the adaptor secrets for swapID, the
// final step that lets it complete the signatures and broadcast/forward
// them (spec 4.8 step 4).
func (c *Client) RevealSwapSecrets(ctx context.Context, idempotencyKey, swapID string, secrets map[string][]byte) error {
	params := struct {
		SwapID  string            `json:"swap_id"`
		Secrets map[string][]byte `json:"secrets"`
	}{swapID, secrets}
	return c.rpcCall(ctx, "reveal_swap_secrets", idempotencyKey, params, nil)
}
