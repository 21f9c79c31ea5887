package walletsdk

import "context"

// WalletInfo is get_info's response (spec section 6).
type WalletInfo struct {
	IdentityPubKey []byte
	BalanceSat     int64
	TokenBalances  map[string]int64
}

// GetInfoOptions configures GetInfo.
type GetInfoOptions struct {
	// EnsureSynced runs SyncWallet (an immediate leaf refresh) before
	// computing the balance, instead of reporting the last cached one.
	EnsureSynced bool
}

// GetInfo reports the wallet's identity and current balances.
func (w *Wallet) GetInfo(ctx context.Context, opts GetInfoOptions) (*WalletInfo, error) {
	if opts.EnsureSynced {
		if err := w.SyncWallet(ctx); err != nil {
			return nil, err
		}
	}

	var balance int64
	for _, l := range w.leaves.Available() {
		balance += l.ValueSat
	}

	return &WalletInfo{
		IdentityPubKey: w.signer.IdentityPublicKey(),
		BalanceSat:     balance,
		TokenBalances:  w.tokens.Balances(),
	}, nil
}

// SyncWallet forces an immediate leaf refresh instead of waiting for the
// leaf store's next tick. It does not run a sync-loop cycle; outgoing and
// incoming sync records are handled only by the background sync loop.
func (w *Wallet) SyncWallet(ctx context.Context) error {
	return w.leaves.Refresh(ctx)
}
