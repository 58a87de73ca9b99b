package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

func loginForm(email, password string) string {
	v := url.Values{}
	v.Set("email", email)
	v.Set("password", password)
	return v.Encode()
}

func responseCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)

	w := e.do("POST", "/users/login",
		loginForm("reviewer@test.org", testPassword), asForm)
	require.Equal(t, 200, w.Code)

	cookie := responseCookie(t, w.Result(), sessionCookie)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// the issued cookie works against the object API
	w = e.do("GET", "/api/list-objects", "",
		withCookie(&http.Cookie{Name: sessionCookie, Value: cookie.Value}))
	assert.Equal(t, 200, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)

	w := e.do("POST", "/users/login",
		loginForm("reviewer@test.org", "not-the-password"), asForm)
	assert.Equal(t, 401, w.Code)

	w = e.do("POST", "/users/login",
		loginForm("nobody@test.org", testPassword), asForm)
	assert.Equal(t, 401, w.Code)
}

func TestLoginPolicyDisabled(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)
	e.createUser(t, "admin@test.org", models.RoleSuperuser)
	require.NoError(t, e.store.UpdateSitePolicy(false, false, "", 100, testNow()))

	w := e.do("POST", "/users/login",
		loginForm("reviewer@test.org", testPassword), asForm)
	assert.Equal(t, 403, w.Code)

	// superusers can still get in to fix the settings
	w = e.do("POST", "/users/login",
		loginForm("admin@test.org", testPassword), asForm)
	assert.Equal(t, 200, w.Code)
}

func TestSignupDisabled(t *testing.T) {
	e := newTestEnv(t)

	v := url.Values{}
	v.Set("email", "new@test.org")
	v.Set("full_name", "New Reviewer")
	v.Set("password", testPassword)
	w := e.do("POST", "/users/new", v.Encode(), asForm)
	assert.Equal(t, 403, w.Code)
}

func TestSignupAndVerify(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.UpdateSitePolicy(true, true, "test.org", 100, testNow()))

	v := url.Values{}
	v.Set("email", "new@test.org")
	v.Set("full_name", "New Reviewer")
	v.Set("password", testPassword)
	w := e.do("POST", "/users/new", v.Encode(), asForm)
	require.Equal(t, 200, w.Code)

	user, err := e.store.GetUserByEmail("new@test.org")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	require.NotNil(t, user.EmailVerifyToken)

	// unverified accounts cannot sign in yet
	w = e.do("POST", "/users/login", loginForm("new@test.org", testPassword), asForm)
	assert.Equal(t, 403, w.Code)

	tv := url.Values{}
	tv.Set("token", *user.EmailVerifyToken)
	w = e.do("POST", "/users/verify", tv.Encode(), asForm)
	require.Equal(t, 200, w.Code)

	w = e.do("POST", "/users/login", loginForm("new@test.org", testPassword), asForm)
	assert.Equal(t, 200, w.Code)
}

func TestSignupDomainNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.UpdateSitePolicy(true, true, "astro.edu", 100, testNow()))

	v := url.Values{}
	v.Set("email", "new@elsewhere.net")
	v.Set("full_name", "New Reviewer")
	v.Set("password", testPassword)
	w := e.do("POST", "/users/new", v.Encode(), asForm)
	assert.Equal(t, 403, w.Code)
}

func TestSignupDuplicateLooksLikeSuccess(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.UpdateSitePolicy(true, true, "", 100, testNow()))
	e.createUser(t, "taken@test.org", models.RoleAuthenticated)

	v := url.Values{}
	v.Set("email", "taken@test.org")
	v.Set("full_name", "Imposter")
	v.Set("password", testPassword)
	w := e.do("POST", "/users/new", v.Encode(), asForm)
	assert.Equal(t, 200, w.Code)
}

func TestSignupShortPassword(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.UpdateSitePolicy(true, true, "", 100, testNow()))

	v := url.Values{}
	v.Set("email", "new@test.org")
	v.Set("full_name", "New Reviewer")
	v.Set("password", "short")
	w := e.do("POST", "/users/new", v.Encode(), asForm)
	assert.Equal(t, 400, w.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)

	v := url.Values{}
	v.Set("email", "reviewer@test.org")
	w := e.do("POST", "/users/forgot-password-step1", v.Encode(), asForm)
	require.Equal(t, 200, w.Code)

	// unknown addresses get an identical answer
	v.Set("email", "nobody@test.org")
	w = e.do("POST", "/users/forgot-password-step1", v.Encode(), asForm)
	require.Equal(t, 200, w.Code)

	user, err := e.store.GetUserByEmail("reviewer@test.org")
	require.NoError(t, err)
	require.NotNil(t, user.PasswordResetToken)

	v = url.Values{}
	v.Set("token", *user.PasswordResetToken)
	v.Set("password", "a-whole-new-password")
	w = e.do("POST", "/users/forgot-password-step2", v.Encode(), asForm)
	require.Equal(t, 200, w.Code)

	w = e.do("POST", "/users/login",
		loginForm("reviewer@test.org", "a-whole-new-password"), asForm)
	assert.Equal(t, 200, w.Code)

	// the token is single use
	w = e.do("POST", "/users/forgot-password-step2", v.Encode(), asForm)
	assert.Equal(t, 400, w.Code)
}

func TestPasswordChange(t *testing.T) {
	e := newTestEnv(t)
	user := e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)
	cookie := e.sessionCookie(t, user)

	v := url.Values{}
	v.Set("current_password", "wrong-password")
	v.Set("new_password", "a-whole-new-password")
	w := e.do("POST", "/users/password-change", v.Encode(), asForm, withCookie(cookie))
	assert.Equal(t, 401, w.Code)

	v.Set("current_password", testPassword)
	w = e.do("POST", "/users/password-change", v.Encode(), asForm, withCookie(cookie))
	require.Equal(t, 200, w.Code)

	w = e.do("POST", "/users/login",
		loginForm("reviewer@test.org", "a-whole-new-password"), asForm)
	assert.Equal(t, 200, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	e := newTestEnv(t)
	user := e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)
	cookie := e.sessionCookie(t, user)

	v := url.Values{}
	v.Set("password", testPassword)
	w := e.do("POST", "/users/delete", v.Encode(), asForm, withCookie(cookie))
	require.Equal(t, 200, w.Code)

	scrubbed, err := e.store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLocked, scrubbed.Role)
	assert.False(t, scrubbed.IsActive)
	assert.NotEqual(t, "reviewer@test.org", scrubbed.Email)

	// old sessions die with the account
	w = e.do("GET", "/api/list-objects", "", withCookie(cookie))
	assert.Equal(t, 401, w.Code)
}

func TestDeleteLastSuperuserRefused(t *testing.T) {
	e := newTestEnv(t)
	admin := e.createUser(t, "admin@test.org", models.RoleSuperuser)

	v := url.Values{}
	v.Set("password", testPassword)
	w := e.do("POST", "/users/delete", v.Encode(), asForm,
		withCookie(e.sessionCookie(t, admin)))
	assert.Equal(t, 400, w.Code)
}

func TestGarbageSessionToken(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "reviewer@test.org", models.RoleAuthenticated)

	w := e.do("GET", "/api/list-objects", "",
		withCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-jwt"}))
	assert.Equal(t, 401, w.Code)
}
