package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const installedClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(installedClient))
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || !strings.Contains(cfg.Scopes[0], "spreadsheets") {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}

	if _, err := OAuthConfig([]byte("invalid-json")); err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected oauth config error, got %v", err)
	}
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "token.json")
	if err := os.WriteFile(valid, []byte(`{"access_token":"from-file","refresh_token":"r"}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		inline  string
		file    string
		want    string
		wantErr string
	}{
		{name: "inline", inline: `{"access_token":"inline"}`, want: "inline"},
		{name: "inline wins over file", inline: `{"access_token":"inline"}`, file: valid, want: "inline"},
		{name: "file", file: valid, want: "from-file"},
		{name: "missing", wantErr: "missing oauth token"},
		{name: "unreadable file", file: filepath.Join(dir, "nope.json"), wantErr: "read oauth token file"},
		{name: "malformed", inline: `{"access_token":`, wantErr: "parse oauth token"},
		{name: "empty token", inline: `{}`, wantErr: "neither access nor refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := LoadToken(tt.inline, tt.file)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.AccessToken != tt.want {
				t.Errorf("AccessToken = %q, want %q", tok.AccessToken, tt.want)
			}
		})
	}
}

func TestSaveTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	tok, err := LoadToken("", path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if tok.RefreshToken != "r" || !tok.Expiry.Equal(expiry) {
		t.Errorf("unexpected token %+v", tok)
	}
}

func TestNew_OAuthRequiresToken(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet",
		OAuthClientJSON: installedClient,
	})
	if err == nil || !strings.Contains(err.Error(), "missing oauth token") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNew_OAuthClient(t *testing.T) {
	c, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet",
		OAuthClientJSON: installedClient,
		OAuthTokenJSON:  `{"access_token":"a","token_type":"Bearer"}`,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.svc == nil {
		t.Fatal("expected sheets service")
	}
}
