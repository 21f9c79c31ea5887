// Package sparkaddr encodes and decodes Spark addresses and Spark
// invoices: bech32m payloads carrying an identity public key and, for an
// invoice, optional amount/token/expiry/description/sender fields (spec
// section 6: "bech32m-encoded payment request identifying a recipient").
package sparkaddr

import (
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// HRP returns the bech32m human-readable part for net, spec 6's "HRP
// carrying network (sp, sprt, ...)".
func HRP(net *chaincfg.Params) string {
	switch net.Net {
	case chaincfg.MainNetParams.Net:
		return "sp"
	default:
		return "sprt"
	}
}

// Invoice is the decoded payload of a Spark invoice or plain address. A
// plain address (receive_payment's SparkAddress method) has only
// IdentityPubKey set; the rest back receive_payment's SparkInvoice method.
type Invoice struct {
	IdentityPubKey []byte
	AmountSat      int64 // 0 means unspecified
	TokenID        string
	Expiry         time.Time // zero means no expiry
	Description    string
	SenderPubKey   []byte // restricts who may pay this invoice, if set
}

const (
	tagAmount      = 0x01
	tagToken       = 0x02
	tagExpiry      = 0x03
	tagDescription = 0x04
	tagSender      = 0x05
)

// EncodeAddress encodes a bare recipient address carrying only an
// identity public key.
func EncodeAddress(net *chaincfg.Params, identityPubKey []byte) (string, error) {
	return encode(net, Invoice{IdentityPubKey: identityPubKey})
}

// EncodeInvoice encodes a full Spark invoice.
func EncodeInvoice(net *chaincfg.Params, inv Invoice) (string, error) {
	return encode(net, inv)
}

func encode(net *chaincfg.Params, inv Invoice) (string, error) {
	if len(inv.IdentityPubKey) != 33 {
		return "", walleterrors.New(walleterrors.KindInvalidInput, "identity public key must be 33 bytes compressed")
	}

	payload := append([]byte{}, inv.IdentityPubKey...)

	if inv.AmountSat != 0 {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(inv.AmountSat))
		payload = append(payload, tagAmount, 8)
		payload = append(payload, buf[:]...)
	}
	if inv.TokenID != "" {
		payload = append(payload, tagToken, byte(len(inv.TokenID)))
		payload = append(payload, inv.TokenID...)
	}
	if !inv.Expiry.IsZero() {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(inv.Expiry.Unix()))
		payload = append(payload, tagExpiry, 8)
		payload = append(payload, buf[:]...)
	}
	if inv.Description != "" {
		payload = append(payload, tagDescription, byte(len(inv.Description)))
		payload = append(payload, inv.Description...)
	}
	if len(inv.SenderPubKey) == 33 {
		payload = append(payload, tagSender, 33)
		payload = append(payload, inv.SenderPubKey...)
	}

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to convert spark address payload")
	}
	encoded, err := bech32.EncodeM(HRP(net), converted)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to bech32m-encode spark address")
	}
	return encoded, nil
}

// Decode parses a Spark address or invoice string.
func Decode(s string) (*Invoice, error) {
	_, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid spark address encoding")
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid spark address payload")
	}
	if len(payload) < 33 {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "spark address payload too short")
	}

	inv := &Invoice{IdentityPubKey: payload[:33]}
	rest := payload[33:]
	for len(rest) >= 2 {
		tag, length := rest[0], int(rest[1])
		rest = rest[2:]
		if length > len(rest) {
			return nil, walleterrors.New(walleterrors.KindInvalidInput, "truncated spark address field")
		}
		field := rest[:length]
		rest = rest[length:]

		switch tag {
		case tagAmount:
			if length != 8 {
				return nil, walleterrors.New(walleterrors.KindInvalidInput, "invalid amount field length")
			}
			inv.AmountSat = int64(binary.BigEndian.Uint64(field))
		case tagToken:
			inv.TokenID = string(field)
		case tagExpiry:
			if length != 8 {
				return nil, walleterrors.New(walleterrors.KindInvalidInput, "invalid expiry field length")
			}
			inv.Expiry = time.Unix(int64(binary.BigEndian.Uint64(field)), 0)
		case tagDescription:
			inv.Description = string(field)
		case tagSender:
			if length != 33 {
				return nil, walleterrors.New(walleterrors.KindInvalidInput, "invalid sender public key length")
			}
			inv.SenderPubKey = field
		}
	}
	return inv, nil
}

// IsSparkAddress reports whether s decodes as a well-formed Spark address
// or invoice, without returning the decoded payload.
func IsSparkAddress(s string) bool {
	_, err := Decode(s)
	return err == nil
}
