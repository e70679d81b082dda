package apistub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/metrics"
	"github.com/felixgeelhaar/eventctl/internal/platform"
)

func setup(t *testing.T) (*Server, *platform.Client) {
	t.Helper()
	stub := NewServer(Options{Secret: "test-secret", Logger: log.Discard()})
	ts := httptest.NewServer(stub.Router())
	t.Cleanup(ts.Close)
	return stub, platform.NewClient(ts.URL+BasePath, 5*time.Second, log.Discard())
}

func TestRegistrationFlow(t *testing.T) {
	stub, client := setup(t)
	ctx := context.Background()

	require.NoError(t, client.SendCode(ctx, "New@Example.com"))
	code, ok := stub.Code("new@example.com")
	require.True(t, ok)
	assert.Len(t, code, 6)

	req := platform.RegisterRequest{
		FirstName:            "Grace",
		LastName:             "Hopper",
		Email:                "new@example.com",
		Password:             "pw",
		PasswordConfirmation: "pw",
		VerificationCode:     "000000x",
	}
	_, err := client.Register(ctx, req)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired verification code", platform.ServerMessage(err))

	req.VerificationCode = code
	tok, err := client.Register(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	user, err := client.GetCurrentUser(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "USER", user.Role)
	assert.Equal(t, "Grace", user.FirstName)

	require.NoError(t, client.SendCode(ctx, "new@example.com"))
	req.VerificationCode, _ = stub.Code("new@example.com")
	_, err = client.Register(ctx, req)
	assert.Equal(t, http.StatusConflict, platform.StatusCode(err))
}

func TestAuthenticate(t *testing.T) {
	stub, client := setup(t)
	ctx := context.Background()
	require.NoError(t, stub.AddUser(platform.User{Email: "a@b.com", Role: "ADMIN"}, "secret"))

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
	}{
		{name: "valid", email: "a@b.com", password: "secret"},
		{name: "case-insensitive email", email: " A@B.com ", password: "secret"},
		{name: "wrong password", email: "a@b.com", password: "nope", wantStatus: http.StatusForbidden},
		{name: "unknown user", email: "x@b.com", password: "secret", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := client.Authenticate(ctx, platform.AuthenticateRequest{Email: tt.email, Password: tt.password})
			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, platform.StatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tok.Token)
		})
	}
}

func TestProtectedRoutes(t *testing.T) {
	stub, client := setup(t)
	ctx := context.Background()

	_, err := client.GetCurrentUser(ctx, "")
	assert.Equal(t, http.StatusUnauthorized, platform.StatusCode(err))

	_, err = client.GetCurrentUser(ctx, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, platform.StatusCode(err))

	other := NewServer(Options{Secret: "other"})
	require.NoError(t, other.AddUser(platform.User{Email: "a@b.com"}, "pw"))
	rec := httptest.NewRecorder()
	other.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	stub.SetProfileUnavailable(true)
	require.NoError(t, stub.AddUser(platform.User{Email: "a@b.com"}, "pw"))
	tok, err := client.Authenticate(ctx, platform.AuthenticateRequest{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	_, err = client.GetCurrentUser(ctx, tok.Token)
	assert.Equal(t, http.StatusServiceUnavailable, platform.StatusCode(err))
}

func TestEvents(t *testing.T) {
	stub, client := setup(t)
	ctx := context.Background()
	require.NoError(t, stub.AddUser(platform.User{Email: "org@b.com", Role: "ORGANIZER"}, "pw"))
	require.NoError(t, stub.AddUser(platform.User{Email: "user@b.com", Role: "USER"}, "pw"))

	login := func(email string) string {
		tok, err := client.Authenticate(ctx, platform.AuthenticateRequest{Email: email, Password: "pw"})
		require.NoError(t, err)
		return tok.Token
	}
	org, user := login("org@b.com"), login("user@b.com")

	later, err := platform.ParseEventTime("2030-06-01T18:00")
	require.NoError(t, err)
	sooner, err := platform.ParseEventTime("2030-01-01T09:00")
	require.NoError(t, err)

	require.NoError(t, client.CreateEvent(ctx, org, platform.EventRequest{Title: "Later", EventDate: later}))
	require.NoError(t, client.CreateEvent(ctx, org, platform.EventRequest{Title: "Sooner", EventDate: sooner}))

	err = client.CreateEvent(ctx, user, platform.EventRequest{Title: "Nope", EventDate: later})
	assert.Equal(t, http.StatusForbidden, platform.StatusCode(err))

	err = client.CreateEvent(ctx, org, platform.EventRequest{EventDate: later})
	assert.Equal(t, "Title is required", platform.ServerMessage(err))

	events, err := client.ListEvents(ctx, user)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Sooner", events[0].Title)

	err = client.DeleteEvent(ctx, user, events[0].ID)
	assert.Equal(t, http.StatusForbidden, platform.StatusCode(err))
	require.NoError(t, client.DeleteEvent(ctx, org, events[0].ID))
	err = client.DeleteEvent(ctx, org, events[0].ID)
	assert.Equal(t, http.StatusNotFound, platform.StatusCode(err))

	events, err = client.ListEvents(ctx, user)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRequestsCounted(t *testing.T) {
	stub, client := setup(t)
	before := stub.Requests()
	_ = client.SendCode(context.Background(), "a@b.com")
	assert.Equal(t, before+1, stub.Requests())
}

func TestOnCode(t *testing.T) {
	var got string
	stub := NewServer(Options{OnCode: func(email, code string) { got = email + ":" + code }, Logger: log.Discard()})
	ts := httptest.NewServer(stub.Router())
	defer ts.Close()

	client := platform.NewClient(ts.URL+BasePath, time.Second, log.Discard())
	require.NoError(t, client.SendCode(context.Background(), "a@b.com"))

	code, _ := stub.Code("a@b.com")
	assert.Equal(t, "a@b.com:"+code, got)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	stub := NewServer(Options{Secret: "test-secret", Logger: log.Discard(), Metrics: m})
	ts := httptest.NewServer(stub.Router())
	defer ts.Close()
	client := platform.NewClient(ts.URL+BasePath, time.Second, log.Discard())
	ctx := context.Background()

	require.NoError(t, stub.AddUser(platform.User{Email: "org@b.com", Role: "ORGANIZER"}, "pw"))
	_, err := client.Authenticate(ctx, platform.AuthenticateRequest{Email: "org@b.com", Password: "bad"})
	require.Error(t, err)
	tok, err := client.Authenticate(ctx, platform.AuthenticateRequest{Email: "org@b.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, client.SendCode(ctx, "new@b.com"))

	require.NoError(t, client.CreateEvent(ctx, tok.Token, platform.EventRequest{
		Title:     "Meetup",
		EventDate: platform.EventTime{Time: time.Date(2025, 12, 12, 18, 30, 0, 0, time.UTC)},
	}))
	evs, err := client.ListEvents(ctx, tok.Token)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.NoError(t, client.DeleteEvent(ctx, tok.Token, evs[0].ID))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", BasePath+"/auth/authenticate", "403")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", BasePath+"/auth/authenticate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authentication.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authentication.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventMutations.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventMutations.WithLabelValues("delete")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EventsStored))
}
