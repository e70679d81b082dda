package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/eventctl/internal/apistub"
	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/session"
)

type fixture struct {
	stub   *apistub.Server
	store  *session.Store
	client *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stub := apistub.NewServer(apistub.Options{Secret: "test", Logger: log.Discard()})
	ts := httptest.NewServer(stub.Router())
	t.Cleanup(ts.Close)

	store := session.NewStore(session.NewMemoryBackend(), log.Discard())
	store.Load(context.Background())

	api := platform.NewClient(ts.URL+apistub.BasePath, 5*time.Second, log.Discard())
	return &fixture{
		stub:   stub,
		store:  store,
		client: NewClient(api, store, log.Discard()),
	}
}

func (f *fixture) seed(t *testing.T, email, password, role string) {
	t.Helper()
	require.NoError(t, f.stub.AddUser(platform.User{FirstName: "Ada", LastName: "Lovelace", Email: email, Role: role}, password))
}

func TestLogin_ValidCredentials(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "secret", "ADMIN")
	ctx := context.Background()

	_, err := f.client.Authenticate(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	user, err := f.client.FetchCurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)

	snap := f.store.Get()
	assert.NotEmpty(t, snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, "a@b.com", snap.User.Email)
	assert.Equal(t, "ADMIN", snap.Role())
}

func TestAuthenticate_InvalidCredentialsKeepToken(t *testing.T) {
	tests := []struct {
		name       string
		priorToken string
	}{
		{name: "no prior session"},
		{name: "existing session", priorToken: "prior"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "a@b.com", "secret", "USER")
			ctx := context.Background()
			if tt.priorToken != "" {
				require.NoError(t, f.store.SetToken(ctx, tt.priorToken))
			}

			_, err := f.client.Authenticate(ctx, "a@b.com", "wrong")

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
			assert.NotContains(t, err.Error(), "Bad credentials", "server detail must not surface")
			assert.Equal(t, tt.priorToken, f.store.Get().Token)
		})
	}
}

func TestAuthenticate_Unreachable(t *testing.T) {
	store := session.NewStore(nil, log.Discard())
	api := platform.NewClient("http://127.0.0.1:1", time.Second, log.Discard())
	client := NewClient(api, store, log.Discard())

	_, err := client.Authenticate(context.Background(), "a@b.com", "pw")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthenticationFailed))
	assert.False(t, store.Get().HasToken())
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.SendVerificationCode(ctx, "g@h.com"))
	code, ok := f.stub.Code("g@h.com")
	require.True(t, ok)

	in := RegisterInput{
		FirstName:            "Grace",
		LastName:             "Hopper",
		Email:                "g@h.com",
		Password:             "pw",
		PasswordConfirmation: "pw",
		VerificationCode:     code,
	}
	token, err := f.client.Register(ctx, in)
	require.NoError(t, err)

	snap := f.store.Get()
	assert.Equal(t, token, snap.Token)
	assert.Nil(t, snap.User, "register does not fetch the profile")
}

func TestRegister_ServerMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.Register(ctx, RegisterInput{
		FirstName:            "Grace",
		LastName:             "Hopper",
		Email:                "g@h.com",
		Password:             "pw",
		PasswordConfirmation: "pw",
		VerificationCode:     "123456",
	})

	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRegistrationFailed, appErr.Code)
	assert.Equal(t, "Invalid or expired verification code", appErr.Message)
	assert.False(t, f.store.Get().HasToken())
}

func TestRegister_GenericMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	store := session.NewStore(nil, log.Discard())
	client := NewClient(platform.NewClient(ts.URL, time.Second, log.Discard()), store, log.Discard())

	_, err := client.Register(context.Background(), RegisterInput{
		FirstName: "a", LastName: "b", Email: "a@b.com",
		Password: "pw", PasswordConfirmation: "pw", VerificationCode: "1",
	})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "registration failed", appErr.Message)
}

func TestRegister_MismatchedPasswordsNoRequest(t *testing.T) {
	f := newFixture(t)
	before := f.stub.Requests()

	_, err := f.client.Register(context.Background(), RegisterInput{
		FirstName:            "Grace",
		LastName:             "Hopper",
		Email:                "g@h.com",
		Password:             "pw",
		PasswordConfirmation: "pw2",
		VerificationCode:     "123456",
	})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRegistration))
	assert.Contains(t, err.Error(), "passwords do not match")
	assert.Equal(t, before, f.stub.Requests())
}

func TestRegisterInput_Validate(t *testing.T) {
	valid := RegisterInput{
		FirstName: "a", LastName: "b", Email: "a@b.com",
		Password: "pw", PasswordConfirmation: "pw", VerificationCode: "1",
	}

	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr string
	}{
		{name: "valid", mutate: func(*RegisterInput) {}},
		{name: "missing first name", mutate: func(in *RegisterInput) { in.FirstName = " " }, wantErr: "first name is required"},
		{name: "missing code", mutate: func(in *RegisterInput) { in.VerificationCode = "" }, wantErr: "verification code is required"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "nope" }, wantErr: "not a valid email"},
		{name: "mismatch", mutate: func(in *RegisterInput) { in.PasswordConfirmation = "x" }, wantErr: "passwords do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSendVerificationCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.SendVerificationCode(ctx, "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVerificationRequestFailed))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()
	failing := NewClient(platform.NewClient(ts.URL, time.Second, log.Discard()), f.store, log.Discard())

	err = failing.SendVerificationCode(ctx, "a@b.com")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVerificationRequestFailed))
}

func TestFetchCurrentUser_NoTokenIsSilent(t *testing.T) {
	f := newFixture(t)
	before := f.stub.Requests()
	snapBefore := f.store.Get()

	user, err := f.client.FetchCurrentUser(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, before, f.stub.Requests())
	assert.Equal(t, snapBefore, f.store.Get())
}

func TestFetchCurrentUser_FailureClearsOnlyProfile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "secret", "ADMIN")
	ctx := context.Background()

	_, err := f.client.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, f.store.Get().User)

	f.stub.SetProfileUnavailable(true)
	_, err = f.client.FetchCurrentUser(ctx)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProfileFetchFailed))
	snap := f.store.Get()
	assert.NotEmpty(t, snap.Token)
	assert.Nil(t, snap.User)
}

func TestFetchCurrentUser_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: "<html>"},
		{name: "array", body: "[]"},
		{name: "null", body: "null"},
		{name: "empty object", body: "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			ctx := context.Background()
			store := session.NewStore(nil, log.Discard())
			require.NoError(t, store.SetToken(ctx, "tok"))
			require.NoError(t, store.SetUser(ctx, &platform.User{Email: "a@b.com", Role: "ADMIN"}))
			client := NewClient(platform.NewClient(ts.URL, time.Second, log.Discard()), store, log.Discard())

			user, err := client.FetchCurrentUser(ctx)

			assert.Nil(t, user)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProfileFetchFailed), "got %v", err)
			snap := store.Get()
			assert.Equal(t, "tok", snap.Token)
			assert.Nil(t, snap.User, "cached profile is cleared")
		})
	}
}

// blockingAPI holds GetCurrentUser until release is closed.
type blockingAPI struct {
	API
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingAPI) GetCurrentUser(ctx context.Context, token string) (*platform.User, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &platform.User{Email: "a@b.com", Role: "ADMIN"}, nil
}

func TestFetchCurrentUser_LogoutDuringFetch(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, log.Discard())
	require.NoError(t, store.SetToken(ctx, "tok"))

	api := &blockingAPI{started: make(chan struct{}), release: make(chan struct{})}
	client := NewClient(api, store, log.Discard())

	type outcome struct {
		user *platform.User
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		user, err := client.FetchCurrentUser(ctx)
		done <- outcome{user, err}
	}()

	<-api.started
	require.NoError(t, client.Logout(ctx))
	close(api.release)

	got := <-done
	require.NoError(t, got.err)
	assert.Nil(t, got.user, "discarded profile is not returned")
	snap := store.Get()
	assert.False(t, snap.HasToken())
	assert.Nil(t, snap.User, "stale profile must not be written after logout")
}

func TestFetchCurrentUser_ConcurrentCallsShareRequest(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(nil, log.Discard())
	require.NoError(t, store.SetToken(ctx, "tok"))

	api := &blockingAPI{started: make(chan struct{}), release: make(chan struct{})}
	client := NewClient(api, store, log.Discard())

	var wg sync.WaitGroup
	first := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(first)
		_, _ = client.FetchCurrentUser(ctx)
	}()
	<-first
	<-api.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = client.FetchCurrentUser(ctx)
	}()
	// give the second caller time to join the in-flight request
	time.Sleep(50 * time.Millisecond)
	close(api.release)
	wg.Wait()

	assert.Equal(t, int32(1), api.calls.Load())
	assert.Equal(t, "ADMIN", store.Get().Role())
}

func TestFetchCurrentUser_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := session.NewStore(nil, log.Discard())
	require.NoError(t, store.SetToken(context.Background(), "tok"))

	api := &blockingAPI{started: make(chan struct{}), release: make(chan struct{})}
	client := NewClient(api, store, log.Discard())

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.FetchCurrentUser(firstCtx)
		firstErr <- err
	}()
	<-api.started

	type outcome struct {
		user *platform.User
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		user, err := client.FetchCurrentUser(context.Background())
		second <- outcome{user, err}
	}()
	// give the second caller time to join the in-flight request
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(api.release)
	got := <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.user)
	assert.Equal(t, "ADMIN", got.user.Role)

	assert.Equal(t, int32(1), api.calls.Load())
	snap := store.Get()
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, "ADMIN", snap.Role())
}

func TestLogin_ProfileFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "secret", "USER")
	f.stub.SetProfileUnavailable(true)

	result, err := f.client.Login(context.Background(), "a@b.com", "secret")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Nil(t, result.User)
	assert.True(t, apperrors.HasCode(result.ProfileErr, apperrors.ErrCodeProfileFetchFailed))
	assert.True(t, f.store.Get().HasToken())
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a@b.com", "secret", "USER")
	ctx := context.Background()
	_, err := f.client.Login(ctx, "a@b.com", "secret")
	require.NoError(t, err)

	require.NoError(t, f.client.Logout(ctx))
	require.NoError(t, f.client.Logout(ctx))

	assert.Equal(t, session.Snapshot{}, f.store.Get())
}
