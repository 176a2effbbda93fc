package cookiesign_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/pkg/cookiesign"
)

var testKey = []byte("12345678901234567890123456789012")

func TestSignVerify(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "simple value", value: "abc123"},
		{name: "value with dots", value: "https://app.example.com/path?q=1"},
		{name: "empty value", value: ""},
		{name: "binary-ish value", value: string([]byte{0x00, 0xff, 0x10})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed := cookiesign.Sign("state", tt.value, testKey)

			got, ok := cookiesign.Verify("state", signed, testKey)
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	signed := cookiesign.Sign("state", "some-state-value", testKey)

	tests := []struct {
		name   string
		signed string
		key    []byte
		cookie string
	}{
		{name: "wrong key", signed: signed, key: []byte("00000000000000000000000000000000"), cookie: "state"},
		{name: "wrong cookie name", signed: signed, key: testKey, cookie: "nonce"},
		{name: "no separator", signed: strings.ReplaceAll(signed, ".", ""), key: testKey, cookie: "state"},
		{name: "bad base64", signed: "!!!." + strings.SplitN(signed, ".", 2)[1], key: testKey, cookie: "state"},
		{name: "bad hex", signed: strings.SplitN(signed, ".", 2)[0] + ".zz", key: testKey, cookie: "state"},
		{name: "flipped signature bit", signed: flipLastHexDigit(signed), key: testKey, cookie: "state"},
		{name: "empty input", signed: "", key: testKey, cookie: "state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := cookiesign.Verify(tt.cookie, tt.signed, tt.key)
			assert.False(t, ok)
		})
	}
}

func flipLastHexDigit(signed string) string {
	last := signed[len(signed)-1]
	if last == '0' {
		return signed[:len(signed)-1] + "1"
	}

	return signed[:len(signed)-1] + "0"
}
