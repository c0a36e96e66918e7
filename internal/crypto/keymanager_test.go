package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestSealOpenKey(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	want := ethcrypto.PubkeyToAddress(pk.PublicKey)

	blob, err := SealKey(pk, RoleAuthority, "hunter2")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	if bytes.Contains(blob, []byte(common.Bytes2Hex(ethcrypto.FromECDSA(pk)))) {
		t.Fatal("key file contains the plaintext key")
	}

	got, err := OpenKey(blob, RoleAuthority, "hunter2")
	if err != nil {
		t.Fatalf("OpenKey: %v", err)
	}
	if ethcrypto.PubkeyToAddress(got.PublicKey) != want {
		t.Fatal("opened a different key")
	}
	if _, err := OpenKey(blob, "", "hunter2"); err != nil {
		t.Fatalf("OpenKey without role: %v", err)
	}

	if _, err := OpenKey(blob, RoleAuthority, "wrong"); err == nil {
		t.Fatal("OpenKey with wrong password succeeded")
	}
	if _, err := OpenKey(blob, RoleAdmin, "hunter2"); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("OpenKey as admin: %v", err)
	}
	if _, err := SealKey(pk, "root", "pw"); err == nil {
		t.Fatal("SealKey accepted an unknown role")
	}
	if _, err := SealKey(pk, RoleAdmin, ""); err == nil {
		t.Fatal("SealKey accepted an empty password")
	}
}

func TestOpenKeyRejectsEditedFile(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	blob, err := SealKey(pk, RoleOwner, "pw")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}

	edit := func(fn func(*keyFile)) []byte {
		var f keyFile
		if err := json.Unmarshal(blob, &f); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		fn(&f)
		out, err := json.Marshal(f)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		return out
	}

	cases := []struct {
		name string
		data []byte
		role Role
	}{
		{"relabelled role", edit(func(f *keyFile) { f.Role = RoleAuthority }), RoleAuthority},
		{"other address", edit(func(f *keyFile) { f.Address = common.HexToAddress("0x01") }), RoleOwner},
		{"weakened kdf", edit(func(f *keyFile) { f.KDF.Iterations = 1000 }), RoleOwner},
		{"unknown version", edit(func(f *keyFile) { f.Version = 9 }), RoleOwner},
		{"short nonce", edit(func(f *keyFile) { f.Nonce = f.Nonce[:4] }), RoleOwner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := OpenKey(tc.data, tc.role, "pw"); err == nil {
				t.Fatal("edited key file opened")
			}
		})
	}
}

func TestLoadSigner(t *testing.T) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	blob, err := SealKey(pk, RoleAuthority, "pw")
	if err != nil {
		t.Fatalf("SealKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "authority.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	want := ethcrypto.PubkeyToAddress(pk.PublicKey)

	s, err := LoadSigner(KeyConfig{KeyFile: path, Password: "pw", Role: RoleAuthority})
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if s.Address() != want {
		t.Fatalf("address = %s, want %s", s.Address().Hex(), want.Hex())
	}

	if _, err := LoadSigner(KeyConfig{KeyFile: path, Password: "pw", Role: RoleOwner}); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("LoadSigner as owner: %v", err)
	}
	raw, err := LoadSigner(KeyConfig{RawPrivateKey: "0x" + common.Bytes2Hex(ethcrypto.FromECDSA(pk)), KeyFile: path})
	if err != nil || raw.Address() != want {
		t.Fatalf("LoadSigner raw = %v, %v", raw, err)
	}
	if _, err := LoadSigner(KeyConfig{}); err == nil {
		t.Fatal("LoadSigner with no source succeeded")
	}
}

func TestWebhookAuth(t *testing.T) {
	h := &WebhookAuth{Secret: "s3cret"}
	body := []byte(`{"kind":"claimed"}`)
	headers := h.HeadersAt(body, 1700000000)

	if headers[HeaderWebhookTimestamp] != "1700000000" {
		t.Fatalf("timestamp header = %q", headers[HeaderWebhookTimestamp])
	}
	if !h.Verify(body, "1700000000", headers[HeaderWebhookSignature]) {
		t.Fatal("Verify rejected a valid signature")
	}
	if h.Verify([]byte(`{}`), "1700000000", headers[HeaderWebhookSignature]) {
		t.Fatal("Verify accepted a tampered body")
	}
}
