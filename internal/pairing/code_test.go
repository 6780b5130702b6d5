package pairing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_CodeShape(t *testing.T) {
	gen := &CodeGenerator{}

	for i := 0; i < 100; i++ {
		code, err := gen.Generate(context.Background(), func(Code) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)

		assert.Len(t, code.String(), CodeLength)
		for _, r := range code.String() {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected character %q in code %s", r, code)
		}
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	gen := &CodeGenerator{}

	calls := 0
	code, err := gen.Generate(context.Background(), func(Code) (bool, error) {
		calls++
		// First two draws collide.
		return calls <= 2, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, 3, calls)
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	gen := &CodeGenerator{}

	calls := 0
	_, err := gen.Generate(context.Background(), func(Code) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, maxGenerateAttempts, calls)
}

func TestGenerate_CancelledContext(t *testing.T) {
	gen := &CodeGenerator{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, func(Code) (bool, error) {
		t.Fatal("duplicate check should not run after cancellation")
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCode(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", "K7M2QX9A", true},
		{"too short", "K7M2QX9", false},
		{"too long", "K7M2QX9AB", false},
		{"lowercase", "k7m2qx9a", false},
		{"confusable zero", "K7M2QX90", false},
		{"confusable letter O", "K7M2QXOA", false},
		{"empty", "", false},
		{"free text", "not-a-code", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, ok := ParseCode(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.input, code.String())
			}
		})
	}
}
