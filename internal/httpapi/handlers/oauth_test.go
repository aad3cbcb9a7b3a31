package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/featherfeed/featherfeed-id/internal/httpapi"
	"github.com/featherfeed/featherfeed-id/internal/httpapi/state"
	"github.com/featherfeed/featherfeed-id/internal/identity"
	"github.com/featherfeed/featherfeed-id/internal/oauth"
	"github.com/featherfeed/featherfeed-id/internal/session"
	"github.com/featherfeed/featherfeed-id/internal/store/memory"
)

type fakeFetcher struct {
	profile *identity.ExternalProfile
}

func (f *fakeFetcher) Fetch(ctx context.Context, accessToken string) (*identity.ExternalProfile, error) {
	return f.profile, nil
}

type fakeExchanger struct {
	token string
}

func (e *fakeExchanger) Exchange(ctx context.Context, shortLived string) (string, error) {
	return e.token, nil
}

type fixture struct {
	router   http.Handler
	api      *API
	issuer   *session.Issuer
	tokenSrv *httptest.Server
}

func newFixture(t *testing.T, profile *identity.ExternalProfile) *fixture {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"short-1","token_type":"bearer"}`))
	}))
	t.Cleanup(tokenSrv.Close)

	cfg := &oauth2.Config{
		ClientID:     "app-1",
		ClientSecret: "shh",
		Endpoint: oauth2.Endpoint{
			AuthURL:  tokenSrv.URL + "/auth",
			TokenURL: tokenSrv.URL + "/token",
		},
		RedirectURL: "http://localhost/v2/oauth/facebook/callback",
	}
	providers := oauth.Providers{
		"facebook": {
			Name:          "facebook",
			Config:        cfg,
			AuthzConfig:   cfg,
			Profile:       &fakeFetcher{profile: profile},
			Exchanger:     &fakeExchanger{token: "long-1"},
			SupportsAuthz: true,
		},
	}

	st := memory.New()
	resolver := identity.NewResolver(identity.Deps{Store: st})
	issuer := session.NewIssuer("test-secret")
	api := New(Deps{
		Providers: providers,
		Resolver:  resolver,
		Store:     st,
		Signer:    state.NewSigner("test-secret", time.Minute),
		Issuer:    issuer,
	})
	return &fixture{
		router:   httpapi.NewRouter(api),
		api:      api,
		issuer:   issuer,
		tokenSrv: tokenSrv,
	}
}

// startFlow drives the start endpoint and returns the state parameter from
// the provider redirect.
func (f *fixture) startFlow(t *testing.T, path, origin, authToken string) string {
	t.Helper()

	target := path + "?origin=" + url.QueryEscape(origin)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	stateParam := loc.Query().Get("state")
	require.NotEmpty(t, stateParam)
	return stateParam
}

func (f *fixture) callback(t *testing.T, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginFlowProvisionsAndPostsToken(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{
		ProviderName: "facebook",
		ProviderID:   "fb-1",
		DisplayName:  "Jane Doe",
		Emails:       []identity.ProfileEmail{{Value: "jane.doe@example.com"}},
	})

	stateParam := f.startFlow(t, "/v2/oauth/facebook", "https://feeds.example.com", "")
	rec := f.callback(t, "/v2/oauth/facebook/callback", url.Values{
		"state": {stateParam},
		"code":  {"code-1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"authToken":"`)
	require.Contains(t, body, `"https://feeds.example.com"`)
	require.NotContains(t, body, `"*"`)
}

func TestLoginFlowRejectsReplayedState(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{ProviderName: "facebook", ProviderID: "fb-1"})

	rec := f.callback(t, "/v2/oauth/facebook/callback", url.Values{
		"state": {"forged"},
		"code":  {"code-1"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	// No popup document on a state failure: there is no trusted origin yet.
	require.NotContains(t, rec.Body.String(), "postMessage")
}

func TestLoginFlowProviderDenial(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{ProviderName: "facebook", ProviderID: "fb-1"})

	stateParam := f.startFlow(t, "/v2/oauth/facebook", "https://feeds.example.com", "")
	rec := f.callback(t, "/v2/oauth/facebook/callback", url.Values{
		"state": {stateParam},
		"error": {"access_denied"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"error":`)
	require.Contains(t, body, `"https://feeds.example.com"`)
}

func TestLoginFlowLinksToSession(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{
		ProviderName: "facebook",
		ProviderID:   "fb-1",
		Emails:       []identity.ProfileEmail{{Value: "jane.doe@example.com"}},
	})

	acct, err := f.api.resolver.RegisterLocal(context.Background(), "jane", "jane@example.com", "hunter22", "")
	require.NoError(t, err)
	authToken, err := f.issuer.Sign(acct.ID)
	require.NoError(t, err)

	stateParam := f.startFlow(t, "/v2/oauth/facebook", "https://feeds.example.com", authToken)
	rec := f.callback(t, "/v2/oauth/facebook/callback", url.Values{
		"state": {stateParam},
		"code":  {"code-1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"authMethods":`)
	require.Contains(t, body, `"facebook"`)

	// The provider identity landed on the session account, not a new one.
	linked, err := f.api.store.GetByProviderIdentity(context.Background(), "facebook", "fb-1")
	require.NoError(t, err)
	require.Equal(t, acct.ID, linked.ID)
}

func TestAuthzFlowRequiresSession(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{ProviderName: "facebook", ProviderID: "fb-1"})

	req := httptest.NewRequest(http.MethodGet, "/v2/oauth/facebook/authz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthzFlowRefreshesToken(t *testing.T) {
	profile := &identity.ExternalProfile{
		ProviderName: "facebook",
		ProviderID:   "fb-1",
		Emails:       []identity.ProfileEmail{{Value: "jane.doe@example.com"}},
	}
	f := newFixture(t, profile)

	// Establish the link via a login flow first.
	stateParam := f.startFlow(t, "/v2/oauth/facebook", "https://feeds.example.com", "")
	rec := f.callback(t, "/v2/oauth/facebook/callback", url.Values{
		"state": {stateParam},
		"code":  {"code-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	acct, err := f.api.store.GetByProviderIdentity(context.Background(), "facebook", "fb-1")
	require.NoError(t, err)
	authToken, err := f.issuer.Sign(acct.ID)
	require.NoError(t, err)

	stateParam = f.startFlow(t, "/v2/oauth/facebook/authz", "https://feeds.example.com", authToken)
	rec = f.callback(t, "/v2/oauth/facebook/authz/callback", url.Values{
		"state": {stateParam},
		"code":  {"code-2"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"accessToken":"long-1"`)

	m, err := f.api.store.GetAuthMethod(context.Background(), acct.ID, "facebook")
	require.NoError(t, err)
	require.Equal(t, "long-1", m.AccessToken)
}

func TestAuthzFlowRejectsDifferentIdentity(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{ProviderName: "facebook", ProviderID: "fb-OTHER"})

	// The session account is linked to fb-1, but the provider comes back
	// asserting fb-OTHER.
	out, err := f.api.resolver.Resolve(context.Background(), nil, &identity.ExternalProfile{
		ProviderName: "facebook",
		ProviderID:   "fb-1",
		Emails:       []identity.ProfileEmail{{Value: "jane.doe@example.com"}},
	}, "short-0")
	require.NoError(t, err)
	authToken, err := f.issuer.Sign(out.Account.ID)
	require.NoError(t, err)

	stateParam := f.startFlow(t, "/v2/oauth/facebook/authz", "https://feeds.example.com", authToken)
	rec := f.callback(t, "/v2/oauth/facebook/authz/callback", url.Values{
		"state": {stateParam},
		"code":  {"code-2"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "different provider account")
}

func TestUnknownProvider(t *testing.T) {
	f := newFixture(t, &identity.ExternalProfile{ProviderName: "facebook", ProviderID: "fb-1"})

	req := httptest.NewRequest(http.MethodGet, "/v2/oauth/myspace", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
