package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/grantkit/oauth"
	"github.com/dpup/grantkit/storage/memory"
)

const (
	testRedirectURI = "http://localhost:3000/callback"
	testUserID      = "u1"
	testAdminID     = "u2"
)

func testProvider(t *testing.T) *Provider {
	t.Helper()
	return NewBuilder().
		WithStore(memory.New()).
		WithIssuer("http://auth.test").
		WithServiceOptions(oauth.WithHasher(oauth.TestHasher)).
		WithClient(oauth.Client{
			ClientID:     "c1",
			Secret:       "s1",
			Name:         "Test App",
			RedirectURIs: []string{testRedirectURI},
		}).
		WithUser(oauth.User{
			ID:             testUserID,
			Username:       "alice",
			HashedPassword: "hunter2",
			Roles:          []string{"user"},
		}).
		WithUser(oauth.User{
			ID:             testAdminID,
			Username:       "root",
			HashedPassword: "hunter2",
			Roles:          []string{"admin"},
		}).
		WithUserAuthorization(func(w http.ResponseWriter, r *http.Request) (string, error) {
			if user := r.FormValue("test_user"); user != "" {
				return user, nil
			}
			return testUserID, nil
		}).
		Build()
}

// authorize drives the authorize endpoint and returns the recorder.
func authorize(t *testing.T, p *Provider, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+query.Encode(), nil)
	w := httptest.NewRecorder()
	p.AuthorizeHandler().ServeHTTP(w, req)
	return w
}

// redeemCode obtains an authorization code through the full authorize flow.
func redeemCode(t *testing.T, p *Provider, scope string) string {
	t.Helper()
	w := authorize(t, p, url.Values{
		"response_type": {"code"},
		"client_id":     {"c1"},
		"redirect_uri":  {testRedirectURI},
		"scope":         {scope},
		"state":         {"xyz"},
	})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code, "no code in redirect: %s", loc)
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	return code
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

func exchange(t *testing.T, p *Provider, form url.Values) (*httptest.ResponseRecorder, tokenResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	p.TokenHandler().ServeHTTP(w, req)

	var resp tokenResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestAuthorizationCodeFlow(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read write")

	w, resp := exchange(t, p, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "read write", resp.Scope)
	assert.Equal(t, "Bearer", resp.TokenType)

	// The issued token resolves through the grant model.
	token, err := p.Grant().GetAccessToken(t.Context(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testUserID, token.UserID)
	assert.True(t, p.Grant().VerifyScope(token, "write"))
	assert.False(t, p.Grant().VerifyScope(token, "admin"))
}

func TestAuthorizationCodeFlow_BasicAuth(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read")

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("c1", "s1")
	w := httptest.NewRecorder()
	p.TokenHandler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestTokenExchange_WrongSecret(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read")

	w, _ := exchange(t, p, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"nope"},
	})
	assert.NotEqual(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_client")
}

func TestTokenExchange_DoubleRedemption(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read")

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	}
	w, _ := exchange(t, p, form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = exchange(t, p, form)
	assert.NotEqual(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")
}

func TestAuthorize_UnknownRedirectURI(t *testing.T) {
	p := testProvider(t)
	w := authorize(t, p, url.Values{
		"response_type": {"code"},
		"client_id":     {"c1"},
		"redirect_uri":  {"http://evil.test/callback"},
		"scope":         {"read"},
	})
	if w.Code == http.StatusFound {
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Empty(t, loc.Query().Get("code"))
		assert.NotEmpty(t, loc.Query().Get("error"))
	} else {
		assert.NotEqual(t, http.StatusOK, w.Code)
	}
}

func TestAuthorize_AdminScopeGate(t *testing.T) {
	p := testProvider(t)

	// A plain user requesting admin scope is turned away.
	w := authorize(t, p, url.Values{
		"response_type": {"code"},
		"client_id":     {"c1"},
		"redirect_uri":  {testRedirectURI},
		"scope":         {"admin"},
		"test_user":     {testUserID},
	})
	if w.Code == http.StatusFound {
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Empty(t, loc.Query().Get("code"))
		assert.Equal(t, "access_denied", loc.Query().Get("error"))
	} else {
		assert.Contains(t, w.Body.String(), "access_denied")
	}

	// An admin gets the code.
	w = authorize(t, p, url.Values{
		"response_type": {"code"},
		"client_id":     {"c1"},
		"redirect_uri":  {testRedirectURI},
		"scope":         {"admin"},
		"test_user":     {testAdminID},
	})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestRefreshTokenGrant(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read")

	w, first := exchange(t, p, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, second := exchange(t, p, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, second.AccessToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// Refreshing rotates out the old pair.
	_, err := p.Grant().GetAccessToken(t.Context(), first.AccessToken)
	assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
}

func TestAuthenticateMiddleware(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read write")
	w, resp := exchange(t, p, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotUser, gotClient string
	var gotScopes []string
	resource := p.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotClient = ClientIDFromContext(r.Context())
		gotScopes = ScopesFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec := httptest.NewRecorder()
	resource.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, gotUser)
	assert.NotEmpty(t, gotClient)
	assert.Equal(t, []string{"read", "write"}, gotScopes)

	// No token.
	req = httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	rec = httptest.NewRecorder()
	resource.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bad token.
	req = httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	resource.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireScope(t *testing.T) {
	p := testProvider(t)
	code := redeemCode(t, p, "read")
	w, resp := exchange(t, p, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	readOnly := p.Authenticate(p.RequireScope("read")(ok))
	writers := p.Authenticate(p.RequireScope("write")(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)

	rec := httptest.NewRecorder()
	readOnly.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	writers.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetadataHandler(t *testing.T) {
	p := testProvider(t)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	w := httptest.NewRecorder()
	p.MetadataHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metadata))
	assert.Equal(t, "http://auth.test", metadata["issuer"])
	assert.Equal(t, "http://auth.test/oauth/token", metadata["token_endpoint"])
}
