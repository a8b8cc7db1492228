package provider

import (
	"encoding/json"
	"net/http"

	"github.com/dpup/grantkit/logging"
)

// AuthorizeHandler handles the OAuth2 authorization endpoint.
func (p *Provider) AuthorizeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.server.HandleAuthorizeRequest(w, r); err != nil {
			logging.Errorw(r.Context(), "authorization error", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
}

// TokenHandler handles the OAuth2 token endpoint.
func (p *Provider) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.server.HandleTokenRequest(w, r); err != nil {
			logging.Errorw(r.Context(), "token error", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
}

// MetadataHandler returns OAuth2 authorization server metadata, for mounting
// at /.well-known/oauth-authorization-server.
func (p *Provider) MetadataHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issuer := p.issuer
		if issuer == "" {
			scheme := "https"
			if r.TLS == nil {
				scheme = "http"
			}
			issuer = scheme + "://" + r.Host
		}

		metadata := map[string]interface{}{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + "/oauth/authorize",
			"token_endpoint":                        issuer + "/oauth/token",
			"response_types_supported":              []string{"code"},
			"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metadata); err != nil {
			http.Error(w, "failed to encode metadata", http.StatusInternalServerError)
		}
	})
}
