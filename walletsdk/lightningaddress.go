package walletsdk

import (
	"context"

	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// RegisterLightningAddress claims username for this identity.
func (w *Wallet) RegisterLightningAddress(ctx context.Context, username string) (*sspclient.LightningAddress, error) {
	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	return w.ssp.RegisterLightningAddress(ctx, idemKey, username)
}

// GetLightningAddress returns this identity's currently registered address.
func (w *Wallet) GetLightningAddress(ctx context.Context) (*sspclient.LightningAddress, error) {
	return w.ssp.GetLightningAddress(ctx)
}

// CheckLightningAddressAvailable reports whether username is free to claim.
func (w *Wallet) CheckLightningAddressAvailable(ctx context.Context, username string) (bool, error) {
	return w.ssp.CheckLightningAddressAvailable(ctx, username)
}

// DeleteLightningAddress releases this identity's registered address.
func (w *Wallet) DeleteLightningAddress(ctx context.Context) error {
	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return err
	}
	return w.ssp.DeleteLightningAddress(ctx, idemKey)
}

// GetTokensMetadata fetches display metadata for the given token
// identifiers, or every token this wallet holds if none are given.
func (w *Wallet) GetTokensMetadata(ctx context.Context, tokenIdentifiers []string) ([]sspclient.TokenMetadata, error) {
	if tokenIdentifiers == nil {
		for id := range w.tokens.Balances() {
			tokenIdentifiers = append(tokenIdentifiers, id)
		}
	}
	metadata, err := w.ssp.GetTokensMetadata(ctx, tokenIdentifiers)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to fetch token metadata")
	}
	return metadata, nil
}
