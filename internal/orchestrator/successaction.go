package orchestrator

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/crypto"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// decryptSuccessAction handles an LNURL-pay SuccessAction once the
// Lightning send that unlocked preimage has succeeded: AES ciphertext is
// decrypted with the preimage as key, a URL action is only validated
// against its declared callback domain (spec 4.10).
func decryptSuccessAction(action *LNURLSuccessAction, preimage []byte) string {
	switch action.Tag {
	case "aes":
		plaintext, err := crypto.Decrypt(action.CiphertextB64, preimage)
		if err != nil {
			walletlog.Warn("failed to decrypt lnurl success action", zap.Error(err))
			return ""
		}
		return plaintext
	case "url":
		if action.CallbackDomain != "" && !urlMatchesDomain(action.URL, action.CallbackDomain) {
			walletlog.Warn("lnurl success action url does not match callback domain",
				zap.String("url", action.URL), zap.String("domain", action.CallbackDomain))
			return ""
		}
		return action.URL
	default:
		return ""
	}
}

func urlMatchesDomain(rawURL, domain string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Hostname() == domain
}
