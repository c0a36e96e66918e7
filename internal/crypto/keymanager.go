// Package crypto provides settlement signing and recovery, wallet request
// authentication, password-sealed key files for the engine's operator roles,
// and webhook HMAC signatures.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

// Role names the operator identity a key file belongs to.
type Role string

const (
	// RoleAuthority signs settlement results.
	RoleAuthority Role = "authority"
	// RoleAdmin manages matches and engine settings.
	RoleAdmin Role = "admin"
	// RoleOwner withdraws from the treasury.
	RoleOwner Role = "owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAuthority, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

const (
	keyFileVersion = 1
	kdfName        = "pbkdf2-sha256"
	// kdfIterations is written into new files; files asking for fewer than
	// minKDFIterations are refused.
	kdfIterations    = 480_000
	minKDFIterations = 100_000
	saltLen          = 16
	aesKeyLen        = 32
)

var (
	// ErrWrongRole is returned when a key file was sealed for another role.
	ErrWrongRole = errors.New("crypto: key file is for another role")
	// ErrKeyMismatch is returned when a decrypted key does not derive the
	// address recorded in its file.
	ErrKeyMismatch = errors.New("crypto: key does not match recorded address")
)

// keyFile is the on-disk form of a sealed key. Role and address are stored
// in the clear and bound into the ciphertext as additional data, so a file
// cannot be relabelled.
type keyFile struct {
	Version    int            `json:"version"`
	Role       Role           `json:"role"`
	Address    common.Address `json:"address"`
	KDF        kdfParams      `json:"kdf"`
	Nonce      hexutil.Bytes  `json:"nonce"`
	Ciphertext hexutil.Bytes  `json:"ciphertext"`
}

type kdfParams struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Salt       hexutil.Bytes `json:"salt"`
}

func (f keyFile) additionalData() []byte {
	return []byte(fmt.Sprintf("parimutuel:%s:%s", f.Role, f.Address.Hex()))
}

func (p kdfParams) gcm(password string) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), p.Salt, p.Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealKey encrypts pk for role under password and returns the JSON key file.
func SealKey(pk *ecdsa.PrivateKey, role Role, password string) ([]byte, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("crypto: unknown role %q", role)
	}
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	f := keyFile{
		Version: keyFileVersion,
		Role:    role,
		Address: ethcrypto.PubkeyToAddress(pk.PublicKey),
		KDF: kdfParams{
			Name:       kdfName,
			Iterations: kdfIterations,
			Salt:       make([]byte, saltLen),
		},
	}
	if _, err := rand.Read(f.KDF.Salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := f.KDF.gcm(password)
	if err != nil {
		return nil, err
	}
	f.Nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(f.Nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}
	f.Ciphertext = gcm.Seal(nil, f.Nonce, ethcrypto.FromECDSA(pk), f.additionalData())

	return json.MarshalIndent(f, "", "  ")
}

// OpenKey decrypts a key file produced by SealKey. When role is non-empty
// the file must have been sealed for it.
func OpenKey(data []byte, role Role, password string) (*ecdsa.PrivateKey, error) {
	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("crypto: parsing key file: %w", err)
	}
	switch {
	case f.Version != keyFileVersion:
		return nil, fmt.Errorf("crypto: unsupported key file version %d", f.Version)
	case f.KDF.Name != kdfName:
		return nil, fmt.Errorf("crypto: unsupported kdf %q", f.KDF.Name)
	case f.KDF.Iterations < minKDFIterations:
		return nil, fmt.Errorf("crypto: kdf iterations %d below %d", f.KDF.Iterations, minKDFIterations)
	case role != "" && f.Role != role:
		return nil, fmt.Errorf("%w: sealed for %q, want %q", ErrWrongRole, f.Role, role)
	}

	gcm, err := f.KDF.gcm(password)
	if err != nil {
		return nil, err
	}
	if len(f.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: bad nonce length %d", len(f.Nonce))
	}
	plain, err := gcm.Open(nil, f.Nonce, f.Ciphertext, f.additionalData())
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password or altered file): %w", err)
	}
	pk, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypted key: %w", err)
	}
	if got := ethcrypto.PubkeyToAddress(pk.PublicKey); got != f.Address {
		return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, got.Hex())
	}
	return pk, nil
}

// KeyConfig says where an operator key comes from. wagerctl populates it
// from flags and the environment.
type KeyConfig struct {
	// RawPrivateKey is a hex key, with or without 0x. It wins over the file
	// and carries no role.
	RawPrivateKey string

	// KeyFile is a key file written by SealKey, opened with Password.
	KeyFile  string
	Password string

	// Role, when set, is required of KeyFile.
	Role Role
}

// LoadSigner resolves the key described by cfg.
func LoadSigner(cfg KeyConfig) (*Signer, error) {
	if cfg.RawPrivateKey != "" {
		return NewSigner(cfg.RawPrivateKey)
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("crypto: no key configured (set a raw key or a key file)")
	}
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("crypto: reading key file: %w", err)
	}
	pk, err := OpenKey(data, cfg.Role, cfg.Password)
	if err != nil {
		return nil, err
	}
	return NewSignerFromKey(pk), nil
}
