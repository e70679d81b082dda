// Package apistub is an in-memory implementation of the events backend's
// HTTP contract, used by tests and by "eventctl stub-server" for local work.
//
// Nothing is persisted. Passwords are bcrypt-hashed and bearer tokens are
// HS256 JWTs signed with a per-server secret.
package apistub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/log"
	"github.com/felixgeelhaar/eventctl/internal/metrics"
	"github.com/felixgeelhaar/eventctl/internal/platform"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api/v1"

// Options configures a Server.
type Options struct {
	// Secret signs tokens. A random secret is generated when empty.
	Secret string
	// TokenTTL bounds token lifetime. Zero means 24h.
	TokenTTL time.Duration
	// OnCode is called with every verification code issued.
	OnCode func(email, code string)
	Logger *log.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
}

type account struct {
	user         platform.User
	passwordHash []byte
}

// Server is the in-memory backend.
type Server struct {
	secret   []byte
	tokenTTL time.Duration
	onCode   func(email, code string)
	logger   *log.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	accounts map[string]*account
	codes    map[string]string
	events   map[int64]platform.Event
	nextID   int64

	requests           atomic.Int64
	profileUnavailable atomic.Bool
}

// NewServer creates an empty backend.
func NewServer(opts Options) *Server {
	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		secret = []byte(hex.EncodeToString(buf))
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		secret:   secret,
		tokenTTL: ttl,
		onCode:   opts.OnCode,
		logger:   log.OrDefault(opts.Logger).WithGroup("stub"),
		metrics:  opts.Metrics,
		accounts: make(map[string]*account),
		codes:    make(map[string]string),
		events:   make(map[int64]platform.Event),
		nextID:   1,
	}
}

// AddUser seeds an account.
func (s *Server) AddUser(user platform.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	user.Email = normalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = string(authz.RoleUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[user.Email]; exists {
		return fmt.Errorf("account %s already exists", user.Email)
	}
	s.accounts[user.Email] = &account{user: user, passwordHash: hash}
	return nil
}

// AddEvent seeds an event and returns its id.
func (s *Server) AddEvent(ev platform.Event) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	s.events[ev.ID] = ev
	s.metrics.EventMutated("create", len(s.events))
	return ev.ID
}

// Code returns the last verification code issued for email.
func (s *Server) Code(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[normalizeEmail(email)]
	return code, ok
}

// Requests returns how many requests the server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Counts returns the number of stored accounts and events.
func (s *Server) Counts() (accounts, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), len(s.events)
}

// SetProfileUnavailable makes GET /users/me fail with 503.
func (s *Server) SetProfileUnavailable(unavailable bool) {
	s.profileUnavailable.Store(unavailable)
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/send-code", s.handleSendCode)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/authenticate", s.handleAuthenticate)

		r.With(s.authMiddleware).Get("/users/me", s.handleGetMe)

		r.With(s.authMiddleware).Get("/events/filter", s.handleListEvents)
		r.With(s.authMiddleware, s.requireRole(authz.RoleAdmin, authz.RoleOrganizer)).Post("/events", s.handleCreateEvent)
		r.With(s.authMiddleware, s.requireRole(authz.RoleAdmin, authz.RoleOrganizer)).Delete("/events/{eventID}", s.handleDeleteEvent)
	})

	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", r.Header.Get(platform.RequestIDHeader),
		)
	})
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req platform.SendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if req.Type != platform.VerificationTypeEmailConfirmation {
		writeError(w, http.StatusBadRequest, "Unsupported verification type")
		return
	}

	code, err := newCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not generate code")
		return
	}

	s.mu.Lock()
	s.codes[email] = code
	s.mu.Unlock()
	s.metrics.CodeIssued()

	if s.onCode != nil {
		s.onCode(email, code)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req platform.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)

	switch {
	case email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "":
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	case req.Password != req.PasswordConfirmation:
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not hash password")
		return
	}

	s.mu.Lock()
	if code, ok := s.codes[email]; !ok || code != strings.TrimSpace(req.VerificationCode) {
		s.mu.Unlock()
		s.metrics.Registered(false)
		writeError(w, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		s.metrics.Registered(false)
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	user := platform.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Role:      string(authz.RoleUser),
	}
	s.accounts[email] = &account{user: user, passwordHash: hash}
	delete(s.codes, email)
	s.mu.Unlock()
	s.metrics.Registered(true)

	s.writeToken(w, user)
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req platform.AuthenticateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[normalizeEmail(req.Email)]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		s.metrics.Authenticated(false)
		writeError(w, http.StatusForbidden, "Bad credentials")
		return
	}

	s.metrics.Authenticated(true)
	s.writeToken(w, acct.user)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	if s.profileUnavailable.Load() {
		writeError(w, http.StatusServiceUnavailable, "Profile service unavailable")
		return
	}

	claims := claimsFromContext(r.Context())
	s.mu.Lock()
	acct, ok := s.accounts[claims.Subject]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	title := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("title")))

	s.mu.Lock()
	events := make([]platform.Event, 0, len(s.events))
	for _, ev := range s.events {
		if title == "" || strings.Contains(strings.ToLower(ev.Title), title) {
			events = append(events, ev)
		}
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].EventDate.Equal(events[j].EventDate.Time) {
			return events[i].ID < events[j].ID
		}
		return events[i].EventDate.Before(events[j].EventDate.Time)
	})
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req platform.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if req.EventDate.IsZero() {
		writeError(w, http.StatusBadRequest, "Event date is required")
		return
	}

	s.AddEvent(platform.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   req.EventDate,
		Location:    req.Location,
	})
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event id")
		return
	}

	s.mu.Lock()
	_, ok := s.events[id]
	delete(s.events, id)
	if ok {
		s.metrics.EventMutated("delete", len(s.events))
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// claims carried in issued tokens.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) writeToken(w http.ResponseWriter, user platform.User) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    "eventctl-stub",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, platform.TokenResponse{Token: signed})
}

func (s *Server) parseToken(tokenString string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *claims {
	c, _ := ctx.Value(claimsKey{}).(*claims)
	return c
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing token")
			return
		}
		c, err := s.parseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...authz.Role) func(http.Handler) http.Handler {
	allowed := authz.NewRoleSet(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := claimsFromContext(r.Context())
			role, _ := authz.ParseRole(c.Role)
			if !allowed.Contains(role) {
				writeError(w, http.StatusForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, platform.ErrorResponse{
		Status:    status,
		Msg:       msg,
		Timestamp: time.Now().Format(platform.EventTimeLayout),
	})
}
