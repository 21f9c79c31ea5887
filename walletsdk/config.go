// Package walletsdk is the public facade wiring every internal engine
// into the API surface a caller actually uses: connect/disconnect,
// balance and payment history, the two-phase send flow, receive
// addresses and invoices, deposit claim/refund, LNURL callbacks,
// lightning-address management, message signing, and the event stream.
package walletsdk

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walletconfig"
)

// Config is the root configuration Connect takes, mirroring
// internal/walletconfig.WalletConfig one subsystem at a time.
type Config struct {
	Wallet walletconfig.WalletConfig

	// Environment selects walletlog's encoding: "production" for JSON,
	// anything else for console output.
	Environment string

	// StorageDir is where this wallet instance keeps purely local state
	// that isn't a row in Postgres (nothing currently; reserved for a
	// future embedded cache, kept so connect's signature matches the
	// public surface's storage_dir parameter).
	StorageDir string
}

// KeyMaterial supplies exactly one of a raw seed or a pre-built signer to
// Connect (spec 6's "seed|signer" connect parameter).
type KeyMaterial struct {
	Seed   []byte
	Signer *signer.Signer
}

func networkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, walleterrors.New(walleterrors.KindInvalidInput, fmt.Sprintf("unknown network %q", name))
	}
}
