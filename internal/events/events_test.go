package events

import (
	"context"
	"net/http/httptest"
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

func newService(t *testing.T, role string) (*Service, *apistub.Server, *session.Store) {
	t.Helper()
	ctx := context.Background()

	stub := apistub.NewServer(apistub.Options{Secret: "test", Logger: log.Discard()})
	ts := httptest.NewServer(stub.Router())
	t.Cleanup(ts.Close)
	api := platform.NewClient(ts.URL+apistub.BasePath, 5*time.Second, log.Discard())

	store := session.NewStore(nil, log.Discard())
	store.Load(ctx)

	if role != "" {
		require.NoError(t, stub.AddUser(platform.User{Email: "u@b.com", Role: role}, "pw"))
		tok, err := api.Authenticate(ctx, platform.AuthenticateRequest{Email: "u@b.com", Password: "pw"})
		require.NoError(t, err)
		require.NoError(t, store.SetToken(ctx, tok.Token))
	}

	return NewService(api, store, log.Discard()), stub, store
}

func mustDate(t *testing.T, s string) platform.EventTime {
	t.Helper()
	d, err := platform.ParseEventTime(s)
	require.NoError(t, err)
	return d
}

func TestCreate_NoSessionFailsLoudly(t *testing.T) {
	svc, stub, _ := newService(t, "")
	before := stub.Requests()

	err := svc.Create(context.Background(), platform.EventRequest{Title: "x", EventDate: mustDate(t, "2030-01-01T10:00")})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoActiveSession))
	assert.Equal(t, before, stub.Requests())
}

func TestCreate_Invalid(t *testing.T) {
	svc, stub, _ := newService(t, "ADMIN")
	before := stub.Requests()

	err := svc.Create(context.Background(), platform.EventRequest{Title: " "})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEventInvalid))
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "event date is required")
	assert.Equal(t, before, stub.Requests())
}

func TestCreate_ServerMessage(t *testing.T) {
	svc, _, _ := newService(t, "USER")

	err := svc.Create(context.Background(), platform.EventRequest{Title: "x", EventDate: mustDate(t, "2030-01-01T10:00")})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeEventCreateFailed, appErr.Code)
	assert.Equal(t, "Insufficient role", appErr.Message)
	assert.NotEmpty(t, appErr.Suggestions)
}

func TestCreateListDelete(t *testing.T) {
	svc, _, _ := newService(t, "ORGANIZER")
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, platform.EventRequest{Title: "Late", EventDate: mustDate(t, "2030-05-01T10:00")}))
	require.NoError(t, svc.Create(ctx, platform.EventRequest{Title: "Early", EventDate: mustDate(t, "2030-01-01T10:00")}))

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Early", events[0].Title)

	require.NoError(t, svc.Delete(ctx, events[0].ID))
	err = svc.Delete(ctx, events[0].ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEventDeleteFailed))

	events, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestList_Failures(t *testing.T) {
	svc, _, store := newService(t, "")
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNoActiveSession))

	require.NoError(t, store.SetToken(ctx, "not-a-jwt"))
	_, err = svc.List(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEventListFailed))
	assert.Equal(t, 401, platform.StatusCode(err))
}

func TestFilterByTitle(t *testing.T) {
	events := []platform.Event{
		{ID: 1, Title: "Go Meetup"},
		{ID: 2, Title: "Rust night"},
		{ID: 3, Title: "GOPHERCON"},
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{query: "", want: []int64{1, 2, 3}},
		{query: "go", want: []int64{1, 3}},
		{query: "  NIGHT ", want: []int64{2}},
		{query: "python", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []int64
			for _, ev := range FilterByTitle(events, tt.query) {
				got = append(got, ev.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
