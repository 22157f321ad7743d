package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/apperror"
	"authflow/internal/repository"
)

type authFixture struct {
	users  *memoryUsers
	clock  *fakeClock
	tokens TokenService
	auth   AuthService
	logs   *test.Hook
}

func newAuthFixture(t *testing.T, opts ...AuthOption) *authFixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &authFixture{
		users: newMemoryUsers(),
		clock: newFakeClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)),
		logs:  hook,
	}
	f.tokens = NewTokenService(testAuthConfig(), WithTokenClock(f.clock.Now))
	store := newTestStore(f.users, WithStoreClock(f.clock.Now))
	f.auth = NewAuthService(store, f.tokens, append([]AuthOption{WithLogger(logger)}, opts...)...)
	return f
}

func TestSignup_TokenIdentifiesCreatedUser(t *testing.T) {
	f := newAuthFixture(t)

	sess, err := f.auth.Signup(context.Background(), validSignup("a@x.com"))
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.Empty(t, sess.User.PasswordHash)

	claims, err := f.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	second := validSignup("a@x.com")
	second.FirstName = "Other"
	second.Username = "other"
	second.Password, second.PasswordConfirm = "Another123", "Another123"

	_, err = f.auth.Signup(ctx, second)
	require.Error(t, err)
	assert.Equal(t, apperror.EmailInUse, apperror.KindOf(err))
	appErr, _ := apperror.As(err)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Equal(t, "Email is in use.", appErr.Message)
}

func TestSignup_InvalidEmailNeverQueriesStore(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Signup(context.Background(), validSignup("not-an-email"))
	require.Error(t, err)
	assert.Equal(t, apperror.InvalidEmail, apperror.KindOf(err))
	assert.Zero(t, f.users.lookupCount())
}

func TestSignup_ValidationError(t *testing.T) {
	f := newAuthFixture(t)
	in := validSignup("a@x.com")
	in.PasswordConfirm = "nope-nope"

	_, err := f.auth.Signup(context.Background(), in)
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))
}

func TestSignup_StoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.users.failGet = errDiskFull

	_, err := f.auth.Signup(context.Background(), validSignup("a@x.com"))
	require.Error(t, err)
	assert.Equal(t, apperror.Persistence, apperror.KindOf(err))
	assert.ErrorIs(t, err, errDiskFull)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		sess, err := f.auth.Login(ctx, "A@x.com", "Secret123")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", sess.User.Email)
		assert.Empty(t, sess.User.PasswordHash)
		assert.NotEmpty(t, sess.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "a@x.com", "Wrong1234")
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.BadCredentials, appErr.Kind)
		assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode())
		assert.Equal(t, "Incorrect Email or Password", appErr.Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "ghost@x.com", "Secret123")
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.UserNotFound, appErr.Kind)
		assert.Equal(t, http.StatusNotFound, appErr.StatusCode())
		assert.Equal(t, "User not found", appErr.Message)
	})
}

func TestLogin_UniformErrors(t *testing.T) {
	f := newAuthFixture(t, WithUniformLoginErrors(true))
	ctx := context.Background()
	_, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	_, unknown := f.auth.Login(ctx, "ghost@x.com", "Secret123")
	_, wrong := f.auth.Login(ctx, "a@x.com", "Wrong1234")

	u, _ := apperror.As(unknown)
	w, _ := apperror.As(wrong)
	require.NotNil(t, u)
	require.NotNil(t, w)
	assert.Equal(t, w.Kind, u.Kind)
	assert.Equal(t, w.Message, u.Message)
	assert.Equal(t, w.StatusCode(), u.StatusCode())
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		user, err := f.auth.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, user.ID)
	})

	t.Run("missing token skips store", func(t *testing.T) {
		before := f.users.lookupCount()
		_, err := f.auth.Authenticate(ctx, "")
		assert.Equal(t, apperror.NotAuthenticated, apperror.KindOf(err))
		assert.Equal(t, before, f.users.lookupCount())
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.auth.Authenticate(ctx, "abc.def.ghi")
		assert.Equal(t, apperror.InvalidToken, apperror.KindOf(err))
	})
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	f.clock.Advance(testAuthConfig().TokenTTL + time.Second)

	_, err = f.auth.Authenticate(ctx, sess.Token)
	assert.Equal(t, apperror.ExpiredToken, apperror.KindOf(err))
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	f.users.delete(sess.User.ID)

	_, err = f.auth.Authenticate(ctx, sess.Token)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.UserNotFound, appErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode())
	assert.Equal(t, "The token owner no longer exists", appErr.Message)
}

func TestAuthenticate_StaleAfterPasswordChange(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	fresh, err := f.auth.ChangePassword(ctx, sess.User.ID, "Secret123", "NewSecret1", "NewSecret1")
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, sess.Token)
	assert.Equal(t, apperror.StaleCredentials, apperror.KindOf(err), "old token must be rejected even though unexpired")

	user, err := f.auth.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)

	_, err = f.auth.Login(ctx, "a@x.com", "Secret123")
	assert.Equal(t, apperror.BadCredentials, apperror.KindOf(err))
	_, err = f.auth.Login(ctx, "a@x.com", "NewSecret1")
	assert.NoError(t, err)

	require.NotEmpty(t, f.logs.AllEntries())
	assert.Equal(t, "password changed", f.logs.LastEntry().Message)
}

func TestAuthenticate_StaleWithinSameSecond(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	f.clock.Advance(500 * time.Millisecond)

	fresh, err := f.auth.ChangePassword(ctx, sess.User.ID, "Secret123", "NewSecret1", "NewSecret1")
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, sess.Token)
	assert.True(t, apperror.Is(err, apperror.StaleCredentials), "got %v", err)

	user, err := f.auth.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	sess, err := f.auth.Signup(ctx, validSignup("a@x.com"))
	require.NoError(t, err)

	_, err = f.auth.ChangePassword(ctx, sess.User.ID, "Wrong1234", "NewSecret1", "NewSecret1")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.BadCredentials, appErr.Kind)
	assert.Equal(t, "Your current password is wrong.", appErr.Message)

	stored, err := f.users.GetByID(ctx, sess.User.ID, repository.DefaultProjection)
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordChangedAt)
}
