package keyguard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestValidateAcceptsCanonicalForms(t *testing.T) {
	cases := map[string]string{
		"bare":             sampleHex,
		"prefixed":         "0x" + sampleHex,
		"surrounding ws":   "  \n0x" + sampleHex + "\r\n\t",
		"interspersed ws":  sampleHex[:10] + " \n " + sampleHex[10:40] + "\t" + sampleHex[40:],
		"uppercase digits": strings.ToUpper(sampleHex),
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := Validate(in)
			require.NoError(t, err)
			assert.Len(t, out, 66)
			assert.True(t, strings.HasPrefix(out, "0x"))
			assert.True(t, strings.EqualFold(out[2:], sampleHex))

			again, err := Validate(out)
			require.NoError(t, err)
			assert.Equal(t, out, again)
		})
	}
}

func TestValidateRejectsMissing(t *testing.T) {
	_, err := Validate("")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "missing key")
}

func TestValidateRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"too short":     sampleHex[:63],
		"too long":      sampleHex + "a",
		"non hex":       sampleHex[:63] + "g",
		"double prefix": "0x0x" + sampleHex[:62],
		"only ws":       " \n\t ",
		"only prefix":   "0x",
		"upper prefix":  "0X" + sampleHex,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(in)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
			assert.Contains(t, err.Error(), "invalid format")
			assert.Contains(t, err.Error(), "got length")
		})
	}
}

func TestDescribeUpperPrefixIsNotAPrefix(t *testing.T) {
	diag := Describe("0X" + sampleHex)
	assert.False(t, diag.HasPrefix)
	assert.Equal(t, 66, diag.CleanLength)
	assert.Empty(t, diag.Fingerprint)

	diag = Describe("0x" + sampleHex)
	assert.True(t, diag.HasPrefix)
	assert.NotEmpty(t, diag.Fingerprint)
}

func TestValidateNeverLogsKeyMaterial(t *testing.T) {
	var buf bytes.Buffer
	restore := logger.SetForTest(logger.New("debug", &buf))
	defer restore()

	_, err := Validate(sampleHex)
	require.NoError(t, err)
	_, _ = Validate(sampleHex[:40])

	logged := buf.String()
	assert.Contains(t, logged, "fingerprint")
	for i := 0; i+8 <= len(sampleHex); i += 8 {
		assert.NotContains(t, logged, sampleHex[i:i+8])
	}
}

func TestDescribe(t *testing.T) {
	d := Describe(" " + sampleHex)
	assert.Equal(t, 65, d.RawLength)
	assert.Equal(t, 64, d.CleanLength)
	assert.False(t, d.HasPrefix)
	assert.Equal(t, Fingerprint("0x"+sampleHex), d.Fingerprint)
	assert.Len(t, d.Fingerprint, 18)

	assert.Empty(t, Describe("abc").Fingerprint)
}
