package session

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Profile is a typed view of the standard identity claims. Providers
// differ in which of these they issue; absent claims stay zero.
type Profile struct {
	Subject           string `mapstructure:"sub"`
	Name              string `mapstructure:"name"`
	GivenName         string `mapstructure:"given_name"`
	FamilyName        string `mapstructure:"family_name"`
	Nickname          string `mapstructure:"nickname"`
	PreferredUsername string `mapstructure:"preferred_username"`
	Email             string `mapstructure:"email"`
	EmailVerified     bool   `mapstructure:"email_verified"`
	Picture           string `mapstructure:"picture"`
	Locale            string `mapstructure:"locale"`
	Zoneinfo          string `mapstructure:"zoneinfo"`
}

// Profile decodes the standard claims into a Profile. Unknown claims
// are ignored; a claim of the wrong type is a decode error.
func (c Claims) Profile() (Profile, error) {
	var p Profile
	if err := mapstructure.Decode(map[string]any(c), &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile claims: %w", err)
	}

	return p, nil
}
