package pairing

import (
	"context"
	"crypto/rand"
	"regexp"
)

const (
	// codeAlphabet is fixed policy: uppercase alphanumerics excluding the
	// visually confusable I, L, O, 0 and 1. Changing it invalidates every
	// outstanding printed or shared code, so don't.
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// CodeLength is the fixed length of an invitation code.
	CodeLength = 8

	// maxGenerateAttempts bounds collision retries so a pathological
	// duplicate-check can not stall Create forever.
	maxGenerateAttempts = 5
)

var codePattern = regexp.MustCompile("^[" + codeAlphabet + "]{8}$")

// Code is an invitation code. It is a distinct type so call sites cannot
// hand a free-form string where a validated code is expected.
type Code string

func (c Code) String() string { return string(c) }

// ParseCode validates the wire form of an invitation code. It performs no
// I/O, so malformed input can be rejected before touching storage.
func ParseCode(s string) (Code, bool) {
	if !codePattern.MatchString(s) {
		return "", false
	}
	return Code(s), true
}

// DuplicateChecker reports whether a candidate code is already live. It is
// injected so the generator carries no storage dependency; the check may
// perform I/O and is advisory only, the unique index on invitations.code is
// the real guard.
type DuplicateChecker func(Code) (bool, error)

// CodeGenerator produces collision-checked invitation codes.
type CodeGenerator struct{}

// Generate draws random codes until the duplicate check passes, up to
// maxGenerateAttempts. Exhaustion returns ErrGenerationFailed rather than
// retrying forever.
func (g *CodeGenerator) Generate(ctx context.Context, isDuplicate DuplicateChecker) (Code, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := randomCode()
		if err != nil {
			return "", err
		}

		dup, err := isDuplicate(code)
		if err != nil {
			return "", err
		}
		if !dup {
			return code, nil
		}
	}
	return "", ErrGenerationFailed
}

func randomCode() (Code, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return Code(buf), nil
}
