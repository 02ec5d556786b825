package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig builds the OAuth client configuration for the Sheets scope from
// a client secrets document.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// ReadOAuthClient returns the client secrets from inline JSON or a file.
func ReadOAuthClient(inline, file string) ([]byte, error) {
	return readSecret(inline, file, "oauth client",
		"missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
}

// LoadToken reads a saved OAuth token from inline JSON or a file.
func LoadToken(inline, file string) (*oauth2.Token, error) {
	b, err := readSecret(inline, file, "oauth token",
		"missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token has neither access nor refresh token")
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (c Config) usesOAuth() bool {
	return strings.TrimSpace(c.OAuthClientJSON) != "" || strings.TrimSpace(c.OAuthClientFile) != ""
}

// oauthHTTPClient returns an HTTP client that refreshes the saved user token
// as needed.
func oauthHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	clientJSON, err := ReadOAuthClient(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	oc, err := OAuthConfig(clientJSON)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, err
	}
	return oc.Client(ctx, tok), nil
}

func readSecret(inline, file, what, missing string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s file: %w", what, err)
		}
		return b, nil
	default:
		return nil, errors.New(missing)
	}
}
