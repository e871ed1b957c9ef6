package remote

import (
	"context"
	"encoding/json/v2"
	"strings"

	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/store"
)

// Credentials identify the user against the CouchDB mirror. URL is
// optional and overrides the configured base URL when set, so a catalog
// can point different installs at different mirrors.
type Credentials struct {
	URL      string `json:"url,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether the credentials are complete enough to attempt
// an exchange.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// LoadCredentials reads the stored credentials. The boolean is false
// when none have been saved yet, which is the normal state before the
// user links a remote mirror.
func LoadCredentials(ctx context.Context, kv store.KV) (Credentials, bool, error) {
	data, err := kv.Get(ctx, store.KeyCredentials)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, errors.Wrap(err, errors.CodeLocalUnavailable, "read stored credentials")
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, errors.Wrap(err, errors.CodeInternal, "stored credentials are corrupt")
	}
	return creds, true, nil
}

// SaveCredentials persists the credentials for future exchanges.
func SaveCredentials(ctx context.Context, kv store.KV, creds Credentials) error {
	if !creds.Valid() {
		return errors.Validation("credentials need a username and a password")
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "serialize credentials")
	}
	if err := kv.Set(ctx, store.KeyCredentials, data); err != nil {
		return errors.Wrap(err, errors.CodeLocalUnavailable, "persist credentials")
	}
	return nil
}
