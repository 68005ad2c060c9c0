package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/queue"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

func TestVerifyEmailGrantsRole(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "a@x.com", "Ada", "abcdefgh")
	token := env.mail.sent()[0].Params["token"]

	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/verify-email", `{"token":"`+token+`"}`)
	require.NoError(t, env.email.VerifyEmail(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	roles, err := env.users.RolesForUser(t.Context(), reg.User.ID)
	require.NoError(t, err)
	assert.Contains(t, roles, model.RoleEmailVerified)

	// Single use: the token row is gone.
	c, rec = env.jsonCtx(http.MethodPost, "/v1/auth/verify-email", `{"token":"`+token+`"}`)
	require.NoError(t, env.email.VerifyEmail(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestVerificationSuppressedSurfaces(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "a@x.com", "Ada", "abcdefgh")
	env.mail.err = repository.ErrSuppressed

	c, rec := env.authedCtx(http.MethodPost, "/v1/auth/verify-email/request", "", reg.User.ID, model.RoleUser)
	require.NoError(t, env.email.RequestVerification(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "email_suppressed")
}

func TestRequestResetAlwaysAccepted(t *testing.T) {
	env := newTestEnv()
	env.register(t, "a@x.com", "Ada", "abcdefgh")

	for _, email := range []string{"a@x.com", "nobody@x.com"} {
		c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/reset-password/request",
			`{"email":"`+email+`"}`)
		require.NoError(t, env.email.RequestReset(c))
		assert.Equal(t, http.StatusAccepted, rec.Code, "address %s must not be distinguishable", email)
	}

	// Only the real account got a mail.
	resets := 0
	for _, ev := range env.mail.sent() {
		if ev.Template == queue.TemplatePasswordReset {
			resets++
			assert.Equal(t, "a@x.com", ev.To)
		}
	}
	assert.Equal(t, 1, resets)
}

func resetToken(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/reset-password/request",
		`{"email":"`+email+`"}`)
	require.NoError(t, env.email.RequestReset(c))
	require.Equal(t, http.StatusAccepted, rec.Code)
	sent := env.mail.sent()
	last := sent[len(sent)-1]
	require.Equal(t, queue.TemplatePasswordReset, last.Template)
	return last.Params["token"]
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "a@x.com", "Ada", "abcdefgh")
	token := resetToken(t, env, "a@x.com")

	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+token+`","new_password":"ijklmnop"}`)
	require.NoError(t, env.email.ResetPassword(c))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Sessions from before the reset are dead.
	assert.Equal(t, http.StatusUnauthorized, refreshWith(t, env, reg.Refresh.Token).Code)

	// New password works, old one does not.
	c, rec = env.jsonCtx(http.MethodPost, "/v1/auth/login", `{"email":"a@x.com","password":"ijklmnop"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	c, rec = env.jsonCtx(http.MethodPost, "/v1/auth/login", `{"email":"a@x.com","password":"abcdefgh"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetTokenSingleUse(t *testing.T) {
	env := newTestEnv()
	env.register(t, "a@x.com", "Ada", "abcdefgh")
	token := resetToken(t, env, "a@x.com")

	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+token+`","new_password":"ijklmnop"}`)
	require.NoError(t, env.email.ResetPassword(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Replaying the consumed token is a conflict, not a not-found: the
	// used_at tombstone distinguishes replay from garbage.
	c, rec = env.jsonCtx(http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+token+`","new_password":"qrstuvwx"}`)
	require.NoError(t, env.email.ResetPassword(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_already_used")
}

func TestResetTokenExpired(t *testing.T) {
	env := newTestEnv()
	env.register(t, "a@x.com", "Ada", "abcdefgh")
	token := resetToken(t, env, "a@x.com")
	env.eph.expireAll()

	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/reset-password",
		`{"token":"`+token+`","new_password":"ijklmnop"}`)
	require.NoError(t, env.email.ResetPassword(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_expired")
}

func TestUnsubscribeSuppressesMarketingOnly(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "a@x.com", "Ada", "abcdefgh")
	token, err := env.eph.Issue(t.Context(), reg.User.ID, model.PurposeUnsubscribe)
	require.NoError(t, err)

	c, rec := env.jsonCtx(http.MethodPost, "/v1/auth/unsubscribe", `{"token":"`+token+`"}`)
	require.NoError(t, env.email.Unsubscribe(c))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	s := env.sup.entries["a@x.com"]
	assert.True(t, s.SuppressMarketing)
	assert.False(t, s.SuppressTransactional, "unsubscribe must not block transactional mail")
	assert.Equal(t, model.SuppressionUnsubscribe, s.Reason)
}

func TestRequestVerificationUsesCallersIdentity(t *testing.T) {
	env := newTestEnv()
	reg := env.register(t, "a@x.com", "Ada", "abcdefgh")
	before := len(env.mail.sent())

	c, rec := env.authedCtx(http.MethodPost, "/v1/auth/verify-email/request", "", reg.User.ID, model.RoleUser)
	require.NoError(t, env.email.RequestVerification(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	sent := env.mail.sent()
	require.Len(t, sent, before+1)
	assert.Equal(t, "a@x.com", sent[len(sent)-1].To)
}
