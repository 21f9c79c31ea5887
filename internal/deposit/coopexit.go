package deposit

import (
	"context"

	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// CoopExitSpeed is the fee tier a cooperative exit can be requested at.
type CoopExitSpeed string

const (
	CoopExitFast   CoopExitSpeed = "fast"
	CoopExitMedium CoopExitSpeed = "medium"
	CoopExitSlow   CoopExitSpeed = "slow"
)

// CoopExitFeeQuote is one speed tier's pricing for a cooperative exit
// (spec 4.7: "three speed tiers, each {user_fee_sat, l1_broadcast_fee_sat}").
type CoopExitFeeQuote struct {
	Speed            CoopExitSpeed
	UserFeeSat       int64
	L1BroadcastFeeSat int64
	QuoteID          string
}

// CoopExitExpiry returns how long a cooperative-exit quote stays valid for
// net (spec 4.7: 48h mainnet, 5min everywhere else).
func CoopExitExpiry(isMainnet bool) (expiry int64) {
	if isMainnet {
		return int64(MainnetCoopExitExpiry.Seconds())
	}
	return int64(OtherNetworkCoopExitExpiry.Seconds())
}

// FetchCoopExitFeeQuotes prices a cooperative exit of totalValueSat to
// withdrawalAddress at every speed tier. The SSP quote carries a single
// fee, which becomes UserFeeSat; L1BroadcastFeeSat is left at zero.
func (e *Engine) FetchCoopExitFeeQuotes(ctx context.Context, totalValueSat int64, withdrawalAddress string) ([]CoopExitFeeQuote, error) {
	quotes := make([]CoopExitFeeQuote, 0, 3)
	for _, speed := range []CoopExitSpeed{CoopExitFast, CoopExitMedium, CoopExitSlow} {
		quote, err := e.ssp.RequestCoopExitQuote(ctx, totalValueSat, withdrawalAddress, string(speed))
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, CoopExitFeeQuote{
			Speed:      speed,
			UserFeeSat: quote.FeeSat,
			QuoteID:    quote.QuoteID,
		})
	}
	return quotes, nil
}

// CoopExit submits the client+operator co-signed connector-plus-exit
// transaction to the SSP for broadcast (spec 4.7). Building and
// co-signing the connector/exit transaction pair is owned by
// internal/leaftx + internal/operatorpool; this method only performs the
// final SSP handoff.
func (e *Engine) CoopExit(ctx context.Context, quoteID string, signedTxHex string) error {
	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return err
	}
	if err := e.ssp.RequestCoopExit(ctx, idemKey, quoteID, signedTxHex); err != nil {
		return walleterrors.Wrap(walleterrors.KindService, err, "ssp rejected coop exit")
	}
	return nil
}
