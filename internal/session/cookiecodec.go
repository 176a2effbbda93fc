package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// CookieCodec seals a whole session into a compact JWE so it can live
// on the client. The content key is derived from the shared login
// secret with SHA-256, giving direct A256GCM encryption.
type CookieCodec struct {
	encrypter jose.Encrypter
	key       []byte
	now       func() time.Time
}

type cookiePayload struct {
	Session Session `json:"session"`
}

func NewCookieCodec(secret []byte) (*CookieCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("session cookie secret must be at least 32 bytes")
	}

	sum := sha256.Sum256(secret)
	key := sum[:]

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("building session encrypter: %w", err)
	}

	return &CookieCodec{
		encrypter: encrypter,
		key:       key,
		now:       time.Now,
	}, nil
}

func (c *CookieCodec) Encode(s Session) (string, error) {
	raw, err := jwt.Encrypted(c.encrypter).
		Claims(jwt.Claims{
			Subject:  s.Subject,
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
			Expiry:   jwt.NewNumericDate(s.Expiry),
		}).
		Claims(cookiePayload{Session: s}).
		Serialize()
	if err != nil {
		return "", fmt.Errorf("sealing session cookie: %w", err)
	}

	return raw, nil
}

// Decode unseals and validates a session cookie. Any failure, from a
// tampered ciphertext to a lapsed expiry, comes back as an error; the
// caller treats all of them as "no session".
func (c *CookieCodec) Decode(raw string) (Session, error) {
	token, err := jwt.ParseEncrypted(raw,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return Session{}, fmt.Errorf("parsing session cookie: %w", err)
	}

	var standardClaims jwt.Claims
	var payload cookiePayload
	if err := token.Claims(c.key, &standardClaims, &payload); err != nil {
		return Session{}, fmt.Errorf("unsealing session cookie: %w", err)
	}

	if err := standardClaims.Validate(jwt.Expected{Time: c.now()}); err != nil {
		return Session{}, fmt.Errorf("validating session cookie claims: %w", err)
	}

	return payload.Session, nil
}
