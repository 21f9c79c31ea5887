package sspclient

import "context"

// LightningAddress is the SSP's record of a registered username@domain
// payable address (spec section 6 public surface).
type LightningAddress struct {
	Address string `json:"address"`
}

// RegisterLightningAddress claims username for this identity, returning
// the full address once the SSP accepts it.
func (c *Client) RegisterLightningAddress(ctx context.Context, idempotencyKey, username string) (*LightningAddress, error) {
	var out LightningAddress
	params := struct {
		Username string `json:"username"`
	}{username}
	if err := c.rpcCall(ctx, "register_lightning_address", idempotencyKey, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLightningAddress returns this identity's currently registered address,
// or a zero-value LightningAddress if none is registered.
func (c *Client) GetLightningAddress(ctx context.Context) (*LightningAddress, error) {
	var out LightningAddress
	if err := c.rpcCall(ctx, "get_lightning_address", "", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckLightningAddressAvailable reports whether username is free to claim.
func (c *Client) CheckLightningAddressAvailable(ctx context.Context, username string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	params := struct {
		Username string `json:"username"`
	}{username}
	if err := c.rpcCall(ctx, "check_lightning_address_available", "", params, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// DeleteLightningAddress releases this identity's registered address.
func (c *Client) DeleteLightningAddress(ctx context.Context, idempotencyKey string) error {
	return c.rpcCall(ctx, "delete_lightning_address", idempotencyKey, struct{}{}, nil)
}

// TokenMetadata describes one token identifier's display properties, the
// token_metadata the conversion_details payload nests (spec section 4.12).
type TokenMetadata struct {
	TokenIdentifier string `json:"token_identifier"`
	Name            string `json:"name"`
	Ticker          string `json:"ticker"`
	Decimals        int32  `json:"decimals"`
	MaxSupply       int64  `json:"max_supply"`
}

// GetTokensMetadata fetches display metadata for the given token
// identifiers (or every token this wallet holds, if identifiers is empty).
func (c *Client) GetTokensMetadata(ctx context.Context, tokenIdentifiers []string) ([]TokenMetadata, error) {
	var out struct {
		Tokens []TokenMetadata `json:"tokens"`
	}
	params := struct {
		TokenIdentifiers []string `json:"token_identifiers,omitempty"`
	}{tokenIdentifiers}
	if err := c.rpcCall(ctx, "get_tokens_metadata", "", params, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}
