package auth

import "testing"

func TestGoogleOAuthConfig_RedirectURL(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"http://localhost:5173", "http://localhost:5173/auth/callback"},
		{"http://localhost:5173/", "http://localhost:5173/auth/callback"},
		{"https://sheets.example.com", "https://sheets.example.com/auth/callback"},
	}

	for _, tt := range tests {
		cfg := GoogleOAuthConfig{BaseURL: tt.baseURL}
		if got := cfg.RedirectURL(); got != tt.want {
			t.Errorf("RedirectURL(%q) = %q, want %q", tt.baseURL, got, tt.want)
		}
	}
}

func TestGoogleOAuthConfig_Options_DefaultScopes(t *testing.T) {
	opts := GoogleOAuthConfig{BaseURL: "http://localhost:5173"}.Options()

	if opts.Provider != "google" {
		t.Errorf("Provider = %q, want google", opts.Provider)
	}
	if opts.RedirectTo != "http://localhost:5173/auth/callback" {
		t.Errorf("RedirectTo = %q", opts.RedirectTo)
	}
	want := "https://www.googleapis.com/auth/drive https://www.googleapis.com/auth/monitoring.read"
	if opts.Scopes != want {
		t.Errorf("Scopes = %q, want %q", opts.Scopes, want)
	}
}

func TestGoogleOAuthConfig_Options_CustomScopes(t *testing.T) {
	opts := GoogleOAuthConfig{BaseURL: "http://x", Scopes: []string{"a", "b"}}.Options()

	if opts.Scopes != "a b" {
		t.Errorf("Scopes = %q, want %q", opts.Scopes, "a b")
	}
}
