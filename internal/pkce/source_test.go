package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_PKCE(t *testing.T) {
	p := Source{}
	pkce := p.PKCE()
	assert.NotEmpty(t, pkce.Verifier, "Empty pkce verifier")
	assert.NotEmpty(t, pkce.Challenge, "Empty pkce challenge")
	assert.Equal(t, MethodS256, pkce.Method, "Unexpected PKCE method")

	sum := sha256.Sum256([]byte(pkce.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pkce.Challenge)
}

func TestSource_State(t *testing.T) {
	p := Source{}
	state := p.State()
	assert.NotEmpty(t, state, "Empty state generated")
	assert.Len(t, state, 64)
}

func TestSource_Nonce(t *testing.T) {
	p := Source{}
	assert.NotEmpty(t, p.Nonce(), "Empty nonce generated")
}

func TestSource_Uniqueness(t *testing.T) {
	p := Source{}

	seen := make(map[string]bool)
	for range 100 {
		for _, v := range []string{p.State(), p.Nonce(), p.SessionID()} {
			assert.False(t, seen[v], "random value repeated: %s", v)
			seen[v] = true
		}
	}
}
