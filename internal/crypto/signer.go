package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// SignatureLen is the length of an r || s || v secp256k1 signature.
const SignatureLen = 65

// ErrMalformedSignature is returned when a signature cannot be decoded or
// does not recover to a public key.
var ErrMalformedSignature = errors.New("crypto: malformed signature")

// Signer signs settlement results and wallet messages with a secp256k1 key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return NewSignerFromKey(pk), nil
}

// NewSignerFromKey wraps an existing private key.
func NewSignerFromKey(pk *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignSettlement signs the result of a match for the engine identified by
// contract. The signature is over the personal-message hash of
// SettlementDigest, so any standard wallet can produce it.
func (s *Signer) SignSettlement(contract common.Address, matchID uint64, result uint8, timestamp uint64) ([]byte, error) {
	digest := SettlementDigest(contract, matchID, result, timestamp)
	return s.signDigest(accounts.TextHash(digest))
}

// SignText signs an arbitrary message with the EIP-191 personal-message prefix.
func (s *Signer) SignText(msg []byte) ([]byte, error) {
	return s.signDigest(accounts.TextHash(msg))
}

// signDigest signs a 32-byte digest and returns r || s || v with v in {27,28}.
func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: %w: %v", domain.ErrSigningFailed, err)
	}

	// go-ethereum returns v in {0,1}; wallets emit {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// SettlementDigest computes
//
//	keccak256(contract || uint256(matchID) || uint256(result) || uint256(timestamp))
//
// using packed encoding: the address is 20 bytes, each integer 32 bytes.
func SettlementDigest(contract common.Address, matchID uint64, result uint8, timestamp uint64) []byte {
	id := uint256.NewInt(matchID).Bytes32()
	res := uint256.NewInt(uint64(result)).Bytes32()
	ts := uint256.NewInt(timestamp).Bytes32()
	return ethcrypto.Keccak256(contract.Bytes(), id[:], res[:], ts[:])
}

// RecoverSettlementSigner returns the address that signed a settlement.
func RecoverSettlementSigner(contract common.Address, matchID uint64, result uint8, timestamp uint64, sig []byte) (common.Address, error) {
	digest := SettlementDigest(contract, matchID, result, timestamp)
	return recoverAddress(accounts.TextHash(digest), sig)
}

// RecoverTextSigner returns the address that personal-signed msg.
func RecoverTextSigner(msg, sig []byte) (common.Address, error) {
	return recoverAddress(accounts.TextHash(msg), sig)
}

// recoverAddress accepts v in either {0,1} or {27,28}.
func recoverAddress(digest, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLen {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	normalized := make([]byte, SignatureLen)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[64])
	}

	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// DecodeSignature parses a 0x-prefixed hex signature.
func DecodeSignature(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(b) != SignatureLen {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(b))
	}
	return b, nil
}

// EncodeSignature renders a signature as 0x-prefixed hex.
func EncodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}
