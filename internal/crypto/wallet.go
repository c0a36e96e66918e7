package crypto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Header names carrying a wallet-signed API request.
const (
	HeaderWalletAddress   = "X-Wallet-Address"
	HeaderWalletTimestamp = "X-Wallet-Timestamp"
	HeaderWalletSignature = "X-Wallet-Signature"
)

// RequestMessage is the text a wallet signs (EIP-191) to authenticate one
// API request:
//
//	parimutuel:<METHOD>:<PATH>:<unix timestamp>:<keccak256(body) hex>
//
// An empty body hashes like any other, so requests without a body are
// bound to that too.
func RequestMessage(method, path string, unixTS int64, body []byte) []byte {
	return []byte(fmt.Sprintf("parimutuel:%s:%s:%d:%s", method, path, unixTS, ethcrypto.Keccak256Hash(body).Hex()))
}

// SignRequest returns the wallet headers for a request at time now.
func (s *Signer) SignRequest(method, path string, body []byte, now time.Time) (map[string]string, error) {
	ts := now.Unix()
	sig, err := s.SignText(RequestMessage(method, path, ts, body))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderWalletAddress:   s.Address().Hex(),
		HeaderWalletTimestamp: strconv.FormatInt(ts, 10),
		HeaderWalletSignature: EncodeSignature(sig),
	}, nil
}

// SignedRequest is the wallet-authenticated part of an API request.
type SignedRequest struct {
	Method    string
	Path      string
	Body      []byte
	Address   string
	Timestamp string
	Signature string
}

// VerifyRequest checks the wallet headers of req and returns the
// authenticated address together with the signed message hash, which
// identifies the request for replay protection. Timestamps further than
// window from now are rejected.
func VerifyRequest(req SignedRequest, now time.Time, window time.Duration) (common.Address, common.Hash, error) {
	if !common.IsHexAddress(req.Address) {
		return common.Address{}, common.Hash{}, fmt.Errorf("crypto: bad wallet address %q", req.Address)
	}
	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("crypto: bad wallet timestamp %q", req.Timestamp)
	}
	if d := now.Sub(time.Unix(ts, 0)); d > window || d < -window {
		return common.Address{}, common.Hash{}, fmt.Errorf("crypto: wallet timestamp outside %s window", window)
	}
	sig, err := DecodeSignature(req.Signature)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	digest := accounts.TextHash(RequestMessage(req.Method, req.Path, ts, req.Body))
	got, err := recoverAddress(digest, sig)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	if want := common.HexToAddress(req.Address); got != want {
		return common.Address{}, common.Hash{}, fmt.Errorf("crypto: wallet signature is from %s, not %s", got.Hex(), want.Hex())
	}
	return got, common.BytesToHash(digest), nil
}
