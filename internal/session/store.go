package session

import "context"

// Store persists sessions server side. Save upserts, so a token
// refresh overwrites the stored copy. Load returns
// serviceerr.ErrNotFound for unknown IDs.
type Store interface {
	Load(ctx context.Context, sessionID string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error

	// DeleteByProviderSessionID removes every session carrying the
	// provider's sid claim. Used by back-channel logout.
	DeleteByProviderSessionID(ctx context.Context, providerSessionID string) error

	// DeleteBySubject removes every session of the subject. Fallback
	// for logout tokens without a sid.
	DeleteBySubject(ctx context.Context, subject string) error

	// List returns all live sessions, for the token refresher.
	List(ctx context.Context) ([]Session, error)
}
