// Command wagerctl is the operator tool for the pari-mutuel engine. It signs
// settlement results with the authority key, signs API requests for wallet
// authentication, and encrypts keys for storage at rest.
//
// Usage:
//
//	wagerctl address      [key flags]
//	wagerctl sign         [key flags] -contract 0x.. -match 7 -result home [-timestamp 1700000000]
//	wagerctl sign-request [key flags] -method POST -path /api/matches/7/claim [-body '{"..."}' | -body @req.json]
//	wagerctl recover      -contract 0x.. -match 7 -result home -timestamp 1700000000 -signature 0x..
//	wagerctl encrypt-key  -role authority -out authority.json
//
// Key flags are -key, -key-file, -password and -role; WAGER_KEY,
// WAGER_KEY_FILE, WAGER_KEY_PASSWORD and WAGER_KEY_ROLE are used when a flag
// is not given. sign only accepts a key file sealed for the authority role.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "wagerctl: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: wagerctl <address|sign|sign-request|recover|encrypt-key> [flags]")

func run(args []string, stdin io.Reader, stdout io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "address":
		return runAddress(rest, stdout)
	case "sign":
		return runSign(rest, stdout, now)
	case "sign-request":
		return runSignRequest(rest, stdout, now)
	case "recover":
		return runRecover(rest, stdout)
	case "encrypt-key":
		return runEncryptKey(rest, stdin, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

// keyFlags registers the key source flags on fs.
type keyFlags struct {
	raw      *string
	file     *string
	password *string
	role     *string
}

func addKeyFlags(fs *flag.FlagSet) keyFlags {
	return keyFlags{
		raw:      fs.String("key", os.Getenv("WAGER_KEY"), "hex private key"),
		file:     fs.String("key-file", os.Getenv("WAGER_KEY_FILE"), "key file produced by encrypt-key"),
		password: fs.String("password", os.Getenv("WAGER_KEY_PASSWORD"), "password for -key-file"),
		role:     fs.String("role", os.Getenv("WAGER_KEY_ROLE"), "role -key-file must be sealed for (authority, admin, owner)"),
	}
}

// signer loads the key. A non-empty required role overrides -role.
func (k keyFlags) signer(required crypto.Role) (*crypto.Signer, error) {
	role := crypto.Role(*k.role)
	if required != "" {
		if role != "" && role != required {
			return nil, fmt.Errorf("-role %s cannot be used here, need %s", role, required)
		}
		role = required
	}
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("invalid -role %q", role)
	}
	return crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey: *k.raw,
		KeyFile:       *k.file,
		Password:      *k.password,
		Role:          role,
	})
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAddress(args []string, stdout io.Writer) error {
	fs := newFlagSet("address")
	keys := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := keys.signer("")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, s.Address().Hex())
	return err
}

// settlementFlags are shared by sign and recover.
type settlementFlags struct {
	contract  *string
	match     *uint64
	result    *string
	timestamp *uint64
}

func addSettlementFlags(fs *flag.FlagSet) settlementFlags {
	return settlementFlags{
		contract:  fs.String("contract", os.Getenv("WAGER_ENGINE_CONTRACT"), "engine contract address"),
		match:     fs.Uint64("match", 0, "match id"),
		result:    fs.String("result", "", "home, draw, away or none (cancel)"),
		timestamp: fs.Uint64("timestamp", 0, "unix timestamp (default now)"),
	}
}

func (f settlementFlags) parse() (common.Address, domain.Outcome, error) {
	if !common.IsHexAddress(*f.contract) {
		return common.Address{}, 0, fmt.Errorf("invalid -contract %q", *f.contract)
	}
	if *f.match == 0 {
		return common.Address{}, 0, errors.New("-match is required")
	}
	result, err := domain.ParseOutcome(*f.result)
	if err != nil {
		return common.Address{}, 0, err
	}
	return common.HexToAddress(*f.contract), result, nil
}

type signedSettlement struct {
	Contract  string `json:"contract"`
	MatchID   uint64 `json:"match_id"`
	Result    string `json:"result"`
	Timestamp uint64 `json:"timestamp"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

func runSign(args []string, stdout io.Writer, now func() time.Time) error {
	fs := newFlagSet("sign")
	keys := addKeyFlags(fs)
	sf := addSettlementFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	contract, result, err := sf.parse()
	if err != nil {
		return err
	}
	ts := *sf.timestamp
	if ts == 0 {
		ts = uint64(now().Unix())
	}
	s, err := keys.signer(crypto.RoleAuthority)
	if err != nil {
		return err
	}

	sig, err := s.SignSettlement(contract, *sf.match, uint8(result), ts)
	if err != nil {
		return err
	}
	return writeJSON(stdout, signedSettlement{
		Contract:  contract.Hex(),
		MatchID:   *sf.match,
		Result:    result.String(),
		Timestamp: ts,
		Signer:    s.Address().Hex(),
		Signature: crypto.EncodeSignature(sig),
	})
}

func runRecover(args []string, stdout io.Writer) error {
	fs := newFlagSet("recover")
	sf := addSettlementFlags(fs)
	sigHex := fs.String("signature", "", "0x-prefixed 65-byte signature")
	if err := fs.Parse(args); err != nil {
		return err
	}
	contract, result, err := sf.parse()
	if err != nil {
		return err
	}
	sig, err := crypto.DecodeSignature(*sigHex)
	if err != nil {
		return err
	}
	addr, err := crypto.RecoverSettlementSigner(contract, *sf.match, uint8(result), *sf.timestamp, sig)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, addr.Hex())
	return err
}

func runSignRequest(args []string, stdout io.Writer, now func() time.Time) error {
	fs := newFlagSet("sign-request")
	keys := addKeyFlags(fs)
	method := fs.String("method", "POST", "HTTP method")
	path := fs.String("path", "", "request path, e.g. /api/matches/7/claim")
	bodyArg := fs.String("body", "", "exact request body, or @file to read it from a file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !strings.HasPrefix(*path, "/") {
		return fmt.Errorf("invalid -path %q", *path)
	}
	body := []byte(*bodyArg)
	if name, ok := strings.CutPrefix(*bodyArg, "@"); ok {
		var err error
		if body, err = os.ReadFile(name); err != nil {
			return fmt.Errorf("reading -body: %w", err)
		}
	}
	s, err := keys.signer("")
	if err != nil {
		return err
	}
	headers, err := s.SignRequest(strings.ToUpper(*method), *path, body, now())
	if err != nil {
		return err
	}
	return writeJSON(stdout, headers)
}

func runEncryptKey(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("encrypt-key")
	out := fs.String("out", "", "output file (default stdout)")
	password := fs.String("password", os.Getenv("WAGER_KEY_PASSWORD"), "encryption password")
	role := fs.String("role", string(crypto.RoleAuthority), "role the key serves (authority, admin, owner)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	keyHex := os.Getenv("WAGER_KEY")
	if keyHex == "" {
		raw, err := io.ReadAll(io.LimitReader(stdin, 4096))
		if err != nil {
			return fmt.Errorf("reading key from stdin: %w", err)
		}
		keyHex = strings.TrimSpace(string(raw))
	}
	if keyHex == "" {
		return errors.New("no key given (set WAGER_KEY or pipe it on stdin)")
	}
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	blob, err := crypto.SealKey(pk, crypto.Role(*role), *password)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = stdout.Write(append(blob, '\n'))
		return err
	}
	return os.WriteFile(*out, blob, 0o600)
}
