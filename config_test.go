package grantkit

import (
	"testing"
	"time"

	"github.com/dpup/grantkit/internal/config"
)

func TestDefaults(t *testing.T) {
	if got := Config.Duration("oauth.accessTokenExpiry"); got != 168*time.Hour {
		t.Errorf("accessTokenExpiry = %v, want 168h", got)
	}
	if got := Config.Duration("oauth.refreshTokenExpiry"); got != 336*time.Hour {
		t.Errorf("refreshTokenExpiry = %v, want 336h", got)
	}
	if got := Config.Duration("oauth.authCodeExpiry"); got != 10*time.Minute {
		t.Errorf("authCodeExpiry = %v, want 10m", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	if err := LoadConfigDefaults(map[string]interface{}{
		"oauth.issuer":  "https://should-not-win.example.com",
		"custom.banner": "hello",
	}); err != nil {
		t.Fatalf("LoadConfigDefaults() error = %v", err)
	}

	if got := Config.String("custom.banner"); got != "hello" {
		t.Errorf("custom.banner = %q, want hello", got)
	}
	// oauth.issuer already exists (default ""), so it must not be replaced.
	if got := Config.String("oauth.issuer"); got != "" {
		t.Errorf("oauth.issuer = %q, want empty", got)
	}
}

func TestSearchForConfig_noConfig(t *testing.T) {
	if actual := config.SearchForConfig("grantkit-rando-11234.yaml", "."); actual != "" {
		t.Fatalf("expected empty string, got %s", actual)
	}
}

func TestTransformEnv(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "GK__OAUTH__ACCESS_TOKEN_EXPIRY", want: "oauth.accessTokenExpiry"},
		{input: "GK__FOOBAR", want: "foobar"},
		{input: "GK__A__B_C", want: "a.bC"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := config.TransformEnv(tt.input); got != tt.want {
				t.Errorf("TransformEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}
