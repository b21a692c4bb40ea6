// Package keyguard validates the wallet secret before any identity is built.
package keyguard

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Prefix is the only recognized key prefix. An uppercase 0X is not a prefix.
const Prefix = "0x"

var keyPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

// Diagnostics are the only facts about a key that may be logged or printed.
type Diagnostics struct {
	RawLength   int    `json:"raw_length"`
	CleanLength int    `json:"clean_length"`
	HasPrefix   bool   `json:"has_prefix"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate strips whitespace, adds the 0x prefix when missing and checks that
// the result is exactly 32 bytes of hex. The returned value is canonical:
// Validate(Validate(s)) == Validate(s).
func Validate(raw string) (string, error) {
	if raw == "" {
		return "", apperrors.NewConfiguration("missing key")
	}

	formatted, diag := normalize(raw)
	valid := keyPattern.MatchString(formatted)
	if valid {
		diag.Fingerprint = Fingerprint(formatted)
	}

	logger.Info("wallet key inspected",
		"raw_length", diag.RawLength,
		"clean_length", diag.CleanLength,
		"has_prefix", diag.HasPrefix,
		"formatted_length", len(formatted),
		"valid", valid,
		"fingerprint", diag.Fingerprint,
	)

	if !valid {
		return "", apperrors.NewConfiguration(fmt.Sprintf(
			"invalid format: expected %d hex characters with or without %s prefix, got length %d",
			64, Prefix, len(formatted)))
	}
	return formatted, nil
}

// Describe reports diagnostics for raw without logging anything.
func Describe(raw string) Diagnostics {
	formatted, diag := normalize(raw)
	if keyPattern.MatchString(formatted) {
		diag.Fingerprint = Fingerprint(formatted)
	}
	return diag
}

// Fingerprint is a short keccak256 digest of the formatted key, enough to tell
// two deployments apart without revealing key material.
func Fingerprint(formatted string) string {
	sum := crypto.Keccak256([]byte(formatted))
	return hexutil.Encode(sum[:8])
}

func normalize(raw string) (string, Diagnostics) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	diag := Diagnostics{
		RawLength:   len(raw),
		CleanLength: len(clean),
		HasPrefix:   hasPrefix(clean),
	}

	if diag.HasPrefix {
		return Prefix + clean[len(Prefix):], diag
	}
	return Prefix + clean, diag
}

func hasPrefix(s string) bool {
	return strings.HasPrefix(s, Prefix)
}
