package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mruedinger/game-club/audit"
	auditfakes "github.com/mruedinger/game-club/audit/repofakes"
	"github.com/mruedinger/game-club/auth"
	"github.com/mruedinger/game-club/cookie"
	gamefakes "github.com/mruedinger/game-club/games/repofakes"
	"github.com/mruedinger/game-club/internal/config"
	"github.com/mruedinger/game-club/internal/oidctest"
	"github.com/mruedinger/game-club/members"
	memberfakes "github.com/mruedinger/game-club/members/repofakes"
	"github.com/mruedinger/game-club/metadata"
	pollfakes "github.com/mruedinger/game-club/polls/repofakes"
	"github.com/mruedinger/game-club/server"
	"github.com/mruedinger/game-club/session"
	settingsfakes "github.com/mruedinger/game-club/settings/repofakes"
)

const (
	testClientID    = "test-client-id"
	testRedirectURI = "http://localhost/api/auth/callback"
)

type fixture struct {
	t        *testing.T
	provider *oidctest.Provider
	members  *memberfakes.FakeMemberRepo
	games    *gamefakes.FakeGameRepo
	polls    *pollfakes.FakePollRepo
	settings *settingsfakes.FakeSettingsRepo
	auditLog *auditfakes.FakeAuditRepo
	steam    *fakeSteam
	codec    *cookie.Codec
	sessions *session.Manager
	srv      *server.Server
}

type fakeSteam struct {
	results []metadata.SearchResult
	err     error
}

func (f *fakeSteam) Search(_ context.Context, _ string) ([]metadata.SearchResult, error) {
	return f.results, f.err
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	provider, err := oidctest.New()
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	codec, err := cookie.NewCodec("test-secret-0123456789abcdef")
	require.NoError(t, err)

	cfg := config.Config{
		AppName:            "Game Club",
		Env:                "TEST",
		GoogleClientID:     testClientID,
		GoogleClientSecret: "test-client-secret",
		GoogleRedirectURI:  testRedirectURI,
		SessionSecret:      "test-secret-0123456789abcdef",
		SessionCookieName:  config.DefaultSessionCookieName,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	log := zerolog.Nop()
	memberRepo := memberfakes.NewFakeMemberRepo()
	gameRepo := gamefakes.NewFakeGameRepo()
	pollRepo := pollfakes.NewFakePollRepo()
	settingsRepo := settingsfakes.NewFakeSettingsRepo()
	auditRepo := auditfakes.NewFakeAuditRepo()
	steam := &fakeSteam{}

	sessions := session.NewManager(codec, memberRepo, session.Options{
		CookieName:        cfg.SessionCookieName,
		IdleTTL:           config.DefaultIdleTTL,
		AbsoluteTTL:       config.DefaultAbsoluteTTL,
		MembershipRecheck: config.DefaultMembershipRecheck,
		ActivityTouch:     config.DefaultActivityTouch,
		LegacyTTL:         config.DefaultLegacySessionTTL,
	}, log)
	flow := auth.NewFlow(codec, config.DefaultOAuthCookieName, config.DefaultOAuthPendingTTL, nil)

	google, err := auth.NewGoogleClient(context.Background(), auth.GoogleConfig{
		ClientID:       testClientID,
		ClientSecret:   "test-client-secret",
		RedirectURI:    testRedirectURI,
		Issuer:         provider.URL(),
		AllowedIssuers: []string{provider.URL()},
	})
	require.NoError(t, err)

	srv := server.New(cfg, server.Deps{
		Members:  memberRepo,
		Games:    gameRepo,
		Polls:    pollRepo,
		Settings: settingsRepo,
		Audit:    audit.NewLog(auditRepo, log),
		Sessions: sessions,
		Flow:     flow,
		Google:   google,
		Steam:    steam,
	}, log)

	return &fixture{
		t:        t,
		provider: provider,
		members:  memberRepo,
		games:    gameRepo,
		polls:    pollRepo,
		settings: settingsRepo,
		auditLog: auditRepo,
		steam:    steam,
		codec:    codec,
		sessions: sessions,
		srv:      srv,
	}
}

func (f *fixture) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// signIn provisions an active member and returns a valid session cookie.
func (f *fixture) signIn(email string, role members.RoleType) *http.Cookie {
	f.t.Helper()
	f.members.Put(members.Member{Email: email, Name: "Test User", Role: role, Active: true})
	c, err := f.sessions.Issue(session.Data{Email: email, Name: "Test User", Role: role}, false)
	require.NoError(f.t, err)
	return c
}

// beginLogin drives the login redirect and returns the decoded pending
// login with its cookie.
func (f *fixture) beginLogin() (*auth.PendingLogin, *http.Cookie) {
	f.t.Helper()
	rec := f.do(http.MethodGet, server.RouteAuthLogin, nil)
	require.Equal(f.t, http.StatusFound, rec.Code)

	pendingCookie := findCookie(f.t, rec, config.DefaultOAuthCookieName)
	var pending auth.PendingLogin
	require.True(f.t, f.codec.Decode(pendingCookie.Value, &pending))
	return &pending, pendingCookie
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	require.NotNil(t, found, "expected cookie %q", name)
	return found
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
