package pix

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBeneficiary() Beneficiary {
	return Beneficiary{
		Key:  "a1b2c3d4-0000-1111-2222-333344445555",
		Name: "Lumapratas Comercio de Joias Ltda",
		City: "Sao Jose do Rio Preto",
	}
}

func TestChecksumReferenceVector(t *testing.T) {
	// Standard CRC16/CCITT-FALSE check value.
	require.Equal(t, "29B1", Checksum("123456789"))
}

func TestGenerateStructure(t *testing.T) {
	code, err := Generate(10.5, testBeneficiary(), "ROM123")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(code, "000201"))
	require.Contains(t, code, "BR.GOV.BCB.PIX")
	require.Contains(t, code, "540510.50") // tag 54, len 05, value 10.50
	require.Contains(t, code, "5802BR")
	require.Contains(t, code, "62100506ROM123")

	// Payload ends in the CRC tag plus 4 uppercase hex digits, and the
	// checksum matches a recomputation over everything before it.
	require.Regexp(t, `6304[0-9A-F]{4}$`, code)
	body := code[:len(code)-4]
	require.Equal(t, code[len(code)-4:], Checksum(body))

	// Every TLV field must be length-consistent end to end.
	requireWalkableTLV(t, code)
}

func TestGenerateDeterministic(t *testing.T) {
	first, err := Generate(59, testBeneficiary(), "ROM20240101")
	require.NoError(t, err)
	second, err := Generate(59, testBeneficiary(), "ROM20240101")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateFallbackTransactionID(t *testing.T) {
	code, err := Generate(1, testBeneficiary(), "")
	require.NoError(t, err)
	require.Contains(t, code, "0516ROM") // ROM + 13-digit epoch millis
	requireWalkableTLV(t, code)
}

func TestGenerateTruncatesNameAndCity(t *testing.T) {
	b := Beneficiary{
		Key:  "chave@lumapratas.com.br",
		Name: strings.Repeat("A", 40),
		City: strings.Repeat("B", 40),
	}
	code, err := Generate(5, b, "ROM1")
	require.NoError(t, err)
	require.Contains(t, code, "5925"+strings.Repeat("A", 25))
	require.Contains(t, code, "6015"+strings.Repeat("B", 15))
}

func TestGenerateTruncatesOversizedKey(t *testing.T) {
	b := Beneficiary{
		Key:  strings.Repeat("k", 120) + "@lumapratas.com.br",
		Name: "Luma Pratas",
		City: "Sao Paulo",
	}
	code, err := Generate(5, b, "ROM1")
	require.NoError(t, err)
	// The key clamps to 77 bytes so the account template length stays within
	// the two-digit TLV ceiling.
	require.Contains(t, code, "0177"+strings.Repeat("k", 77))
	requireWalkableTLV(t, code)
}

func TestGenerateNotConfigured(t *testing.T) {
	_, err := Generate(10, Beneficiary{City: "Sao Paulo"}, "")
	require.True(t, errors.Is(err, ErrNotConfigured))

	_, err = Generate(10, Beneficiary{Key: "x"}, "")
	require.True(t, errors.Is(err, ErrNotConfigured))
}

// requireWalkableTLV parses the payload as a sequence of id/len/value fields
// and fails if any declared length runs past the end of the string.
func requireWalkableTLV(t *testing.T, code string) {
	t.Helper()
	i := 0
	for i < len(code) {
		require.GreaterOrEqual(t, len(code)-i, 4, "truncated field header at %d", i)
		length, err := strconv.Atoi(code[i+2 : i+4])
		require.NoError(t, err, "bad length at %d", i)
		require.LessOrEqual(t, i+4+length, len(code), "field at %d overruns payload", i)
		i += 4 + length
	}
	require.Equal(t, len(code), i)
}
