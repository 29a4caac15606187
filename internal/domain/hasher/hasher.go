// Package hasher fingerprints incoming transactions so that repeated batch
// imports of the same statement line are recognized and skipped.
//
// The fingerprint covers only stable fields:
//
//	date | normalized description | debit | credit | account
//
// Two records with identical stable fields hash identically regardless of
// import run or ordering.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissingField is returned when a required stable field is absent.
var ErrMissingField = errors.New("missing required field")

// separator is the ASCII unit separator; it cannot appear in normalized text.
const separator = "\x1f"

// Fields are the stable fields of a transaction. Debit and Credit are
// absolute amounts; at least one must be set.
type Fields struct {
	Date        time.Time
	Description string
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	Account     string
}

// Fingerprint returns the hex-encoded SHA-256 digest (64 characters) of the
// normalized fields.
func Fingerprint(f Fields) (string, error) {
	if f.Date.IsZero() {
		return "", fmt.Errorf("%w: date", ErrMissingField)
	}
	account := strings.ToUpper(strings.TrimSpace(f.Account))
	if account == "" {
		return "", fmt.Errorf("%w: account", ErrMissingField)
	}
	if f.Debit == nil && f.Credit == nil {
		return "", fmt.Errorf("%w: debit or credit amount", ErrMissingField)
	}

	parts := []string{
		f.Date.Format("2006-01-02"),
		NormalizeDescription(f.Description),
		formatAmount(f.Debit),
		formatAmount(f.Credit),
		account,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:]), nil
}

// NormalizeDescription lower-cases s, drops control characters and collapses
// runs of whitespace to a single space.
func NormalizeDescription(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, strings.ToLower(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// SplitAmount turns a signed amount into absolute debit and credit parts.
// Negative amounts are debits; zero and positive amounts are credits.
func SplitAmount(amount decimal.Decimal) (debit, credit *decimal.Decimal) {
	abs := amount.Abs()
	if amount.IsNegative() {
		return &abs, nil
	}
	return nil, &abs
}

func formatAmount(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.Abs().StringFixed(2)
}
