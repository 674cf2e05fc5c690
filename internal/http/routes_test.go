package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/academiq/academiq-api/internal/adapters/idp"
	"github.com/academiq/academiq-api/internal/domain/routing"
	domainsession "github.com/academiq/academiq-api/internal/domain/session"
	mockauth "github.com/academiq/academiq-api/internal/mocks/auth"
	"github.com/academiq/academiq-api/internal/service"
)

// routerEnv wires the full HTTP stack over in-memory stores, mirroring the
// production composition in bootstrap.
type routerEnv struct {
	Handler  http.Handler
	Sessions *mockauth.MemorySessionStore
	Roles    *mockauth.MemoryRoleStore
	Profiles *mockauth.MemoryStudentProfiles
	Registry *service.ResolverRegistry
	Auth     *service.AuthService
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	sessions := mockauth.NewMemorySessionStore()
	roles := mockauth.NewMemoryRoleStore()
	profiles := mockauth.NewMemoryStudentProfiles()

	hub := idp.NewHub(func(ctx context.Context, key string) (*domainsession.Identity, error) {
		sess, err := sessions.Get(ctx, key)
		if err != nil {
			if errors.Is(err, mockauth.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		identity := sess.Identity()
		return &identity, nil
	}, nil)

	registry, err := service.NewResolverRegistry(service.ResolverRegistryOptions{
		Streams:  hub,
		Roles:    roles,
		Fallback: service.FallbackToStudent(),
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	gate, err := service.NewAccessGate(service.AccessGateOptions{
		Table:            routing.DefaultTable(),
		NilRoleAsStudent: true,
	})
	require.NoError(t, err)

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Provider:  mockauth.NewMockAuthProvider(),
		Sessions:  sessions,
		Roles:     roles,
		Profiles:  profiles,
		Publisher: hub,
	})

	handler := NewRouter(RouterServices{
		Auth:      authSvc,
		Snapshots: registry,
		Gate:      gate,
		Table:     routing.DefaultTable(),
		Roles:     roles,
	})

	return &routerEnv{
		Handler:  handler,
		Sessions: sessions,
		Roles:    roles,
		Profiles: profiles,
		Registry: registry,
		Auth:     authSvc,
	}
}

// loginAs seeds a session and role record and returns the session cookie.
func (env *routerEnv) loginAs(t *testing.T, userID, role string) *http.Cookie {
	t.Helper()
	sess := domainsession.Session{
		ID:        "sess-" + userID,
		UserID:    userID,
		Email:     userID + "@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, env.Sessions.Save(context.Background(), sess))
	if role != "" {
		env.Roles.Put(domainsession.RoleRecord{UserID: userID, Role: role})
	}
	return &http.Cookie{Name: "session_id", Value: sess.ID}
}

func (env *routerEnv) get(path, accept string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_PublicPagesServeGuests(t *testing.T) {
	env := newRouterEnv(t)

	for _, path := range []string{"/", "/roles", "/auth", "/login", "/register"} {
		rec := env.get(path, "text/html")
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	}
}

func TestRouter_UnknownPathRedirectsHome(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.get("/no-such-page", "text/html")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookie := env.loginAs(t, "u1", "admin")
	rec = env.get("/no-such-page", "text/html", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRouter_GuestDashboardRedirectsToLogin(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.get("/teacherdash", "text/html")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?redirect_uri=%2Fteacherdash", rec.Header().Get("Location"))
}

func TestRouter_MatchingRoleReachesDashboard(t *testing.T) {
	env := newRouterEnv(t)

	cases := []struct {
		role string
		path string
	}{
		{"student", "/studentportal"},
		{"parent", "/parentdashboard"},
		{"teacher", "/teacherdash"},
		{"admin", "/admindash"},
	}
	for _, tc := range cases {
		cookie := env.loginAs(t, "user-"+tc.role, tc.role)
		rec := env.get(tc.path, "text/html", cookie)
		assert.Equal(t, http.StatusOK, rec.Code, "role %s on %s", tc.role, tc.path)
		assert.Contains(t, rec.Body.String(), "signed in as "+tc.role)
	}
}

func TestRouter_MismatchedRoleRedirectsHome(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "student")

	for _, path := range []string{"/parentdashboard", "/teacherdash", "/admindash"} {
		rec := env.get(path, "text/html", cookie)
		assert.Equal(t, http.StatusSeeOther, rec.Code, "path %s", path)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	}
}

func TestRouter_StudentPortalDeniesWithPanel(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "teacher")

	rec := env.get("/studentportal", "text/html", cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	doc, err := html.Parse(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, "Access Denied", firstText(doc, "h1"))
	roleLine := firstText(doc, "strong")
	assert.Equal(t, "teacher", roleLine)

	link, ok := firstAttr(doc, "a", "href")
	require.True(t, ok, "panel has no link home")
	assert.Equal(t, "/", link)
}

func TestRouter_NilRoleAdmittedAsStudent(t *testing.T) {
	env := newRouterEnv(t)
	// No role record anywhere: the resolver applies the student fallback.
	cookie := env.loginAs(t, "u1", "")

	rec := env.get("/studentportal", "text/html", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.get("/admindash", "text/html", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRouter_SessionEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	t.Run("guest", func(t *testing.T) {
		rec := env.get("/api/session", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["authenticated"])
		assert.Equal(t, "ready", body["status"])
		assert.Nil(t, body["role"])
	})

	t.Run("authenticated", func(t *testing.T) {
		cookie := env.loginAs(t, "u1", "admin")
		rec := env.get("/api/session", "application/json", cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, "admin", body["role"])
		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "u1", user["id"])
		assert.Equal(t, "u1@example.com", user["email"])
	})
}

func TestRouter_DecisionEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	t.Run("requires path", func(t *testing.T) {
		rec := env.get("/api/gate/decision", "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("guest preflight for a guarded path", func(t *testing.T) {
		rec := env.get("/api/gate/decision?path=/admindash", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "redirect_to_login", body["outcome"])
		assert.Equal(t, "/login", body["target"])
		assert.Equal(t, "admin", body["required_role"])
	})

	t.Run("mismatch carries actual role", func(t *testing.T) {
		cookie := env.loginAs(t, "u1", "parent")
		rec := env.get("/api/gate/decision?path=/studentportal", "application/json", cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "deny", body["outcome"])
		assert.Equal(t, "student", body["required_role"])
		assert.Equal(t, "parent", body["actual_role"])
	})
}

func TestRouter_RolesEndpoint(t *testing.T) {
	env := newRouterEnv(t)

	t.Run("falls back to catalog when store is empty", func(t *testing.T) {
		rec := env.get("/api/roles", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		roles, ok := body["roles"].([]any)
		require.True(t, ok)
		assert.Len(t, roles, 4)
	})

	t.Run("serves stored roles", func(t *testing.T) {
		env.Roles.Put(domainsession.RoleRecord{UserID: "u1", Role: "teacher"})
		rec := env.get("/api/roles", "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		roles, ok := body["roles"].([]any)
		require.True(t, ok)
		assert.Equal(t, []any{"teacher"}, roles)
	})
}

func TestRouter_LoginFlow(t *testing.T) {
	env := newRouterEnv(t)

	// Step 1: initiate login; the IdP redirect carries state and nonce cookies.
	rec := env.get("/auth/login?redirect_uri=/teacherdash", "text/html")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	var state, nonce, postLogin *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case "oauth_state":
			state = c
		case "oauth_nonce":
			nonce = c
		case "post_login_redirect":
			postLogin = c
		}
	}
	require.NotNil(t, state)
	require.NotNil(t, nonce)
	require.NotNil(t, postLogin)
	assert.Equal(t, "/teacherdash", postLogin.Value)

	// Step 2: complete the callback with matching state.
	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state.Value, nil)
	r.AddCookie(state)
	r.AddCookie(nonce)
	r.AddCookie(postLogin)
	cb := httptest.NewRecorder()
	env.Handler.ServeHTTP(cb, r)

	require.Equal(t, http.StatusFound, cb.Code)
	assert.Equal(t, "/teacherdash", cb.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range cb.Result().Cookies() {
		if c.Name == "session_id" && c.Value != "" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "callback set no session cookie")

	// Step 3: the fresh session resolves through the gate. No role record
	// exists yet, so the student fallback applies.
	page := env.get("/studentportal", "text/html", sessionCookie)
	assert.Equal(t, http.StatusOK, page.Code)
}

func TestRouter_CallbackRejectsStateMismatch(t *testing.T) {
	env := newRouterEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	r.AddCookie(&http.Cookie{Name: "oauth_state", Value: "expected"})
	r.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
}

func TestRouter_RegisterProvisionsRole(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "")

	r := httptest.NewRequest(http.MethodPost, "/auth/register?role=teacher", nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "teacher", body["role"])
	assert.Equal(t, "/teacherdash", body["redirect_to"])

	// The released resolver re-fetches the new record on the next request.
	page := env.get("/teacherdash", "text/html", cookie)
	assert.Equal(t, http.StatusOK, page.Code)
}

func TestRouter_RegisterStudentCreatesProfileRow(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "")

	r := httptest.NewRequest(http.MethodPost, "/auth/register?role=student", nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "student", body["role"])
	assert.Equal(t, "/studentportal", body["redirect_to"])

	email, ok := env.Profiles.Email("u1")
	require.True(t, ok, "student signup wrote no profile row")
	assert.Equal(t, "u1@example.com", email)
}

func TestRouter_RegisterTeacherSkipsProfileRow(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "")

	r := httptest.NewRequest(http.MethodPost, "/auth/register?role=teacher", nil)
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, env.Profiles.Len())
}

func TestRouter_RegisterRequiresSession(t *testing.T) {
	env := newRouterEnv(t)

	r := httptest.NewRequest(http.MethodPost, "/auth/register?role=teacher", nil)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RegisterAcceptsJSONBody(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "")

	r := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"role":"parent"}`))
	r.Header.Set("Content-Type", "application/json")
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "parent", body["role"])
	assert.Equal(t, "/parentdashboard", body["redirect_to"])
}

func TestRouter_LogoutEndsTheSession(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "admin")

	// Confirm the session works first.
	rec := env.get("/admindash", "text/html", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.AddCookie(cookie)
	out := httptest.NewRecorder()
	env.Handler.ServeHTTP(out, r)
	assert.Equal(t, http.StatusFound, out.Code)
	assert.Equal(t, "/", out.Header().Get("Location"))

	// The server-side session is gone; the dashboard now demands login.
	rec = env.get("/admindash", "text/html", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth/login")
}

func TestRouter_LogoutAnswersAJAXWithJSON(t *testing.T) {
	env := newRouterEnv(t)
	cookie := env.loginAs(t, "u1", "admin")

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.Handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "/", body["redirect_to"])
}

func TestRouter_Healthz(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// firstText returns the text content of the first element with the given tag.
func firstText(n *html.Node, tag string) string {
	node := findElement(n, tag)
	if node == nil {
		return ""
	}
	var sb strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

// firstAttr returns an attribute of the first element with the given tag.
func firstAttr(n *html.Node, tag, attr string) (string, bool) {
	node := findElement(n, tag)
	if node == nil {
		return "", false
	}
	for _, a := range node.Attr {
		if a.Key == attr {
			return a.Val, true
		}
	}
	return "", false
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
