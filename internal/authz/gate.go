// Package authz decides whether a session-bound view may be shown.
//
// The gate derives its state from the session store on every evaluation and
// returns a Decision value. Denial is a routing outcome (go to login), never
// an error.
package authz

import (
	"github.com/felixgeelhaar/eventctl/internal/session"
)

// State is the gate's view of the session.
type State int

const (
	// StateHydrating means the session has not finished loading.
	StateHydrating State = iota
	// StateAuthorized means a token is held.
	StateAuthorized
	// StateUnauthorized means no token is held.
	StateUnauthorized
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateAuthorized:
		return "authorized"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// StateOf derives the gate state from a snapshot.
func StateOf(snap session.Snapshot) State {
	switch {
	case snap.Loading:
		return StateHydrating
	case snap.HasToken():
		return StateAuthorized
	default:
		return StateUnauthorized
	}
}

// Requirement is the capability a view asks for: any session, or a session
// whose profile role is in a set.
type Requirement struct {
	roles RoleSet
}

// Anyone requires only an authorized session.
func Anyone() Requirement {
	return Requirement{}
}

// AnyRole requires an authorized session whose role is one of roles.
func AnyRole(roles ...Role) Requirement {
	return Requirement{roles: NewRoleSet(roles...)}
}

// RequiresRole reports whether the requirement names roles.
func (r Requirement) RequiresRole() bool {
	return len(r.roles) > 0
}

// Roles returns the accepted roles, or nil for Anyone.
func (r Requirement) Roles() RoleSet {
	return r.roles
}

func (r Requirement) String() string {
	if !r.RequiresRole() {
		return "any session"
	}
	return "role " + r.roles.String()
}

// Effect is the outcome of an evaluation.
type Effect string

const (
	EffectWait  Effect = "wait"
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Reasons attached to denials.
const (
	ReasonNoSession = "no active session"
	ReasonRole      = "role not permitted"
)

// RedirectLogin is where denied callers are sent.
const RedirectLogin = "login"

// Decision is the result of Gate.Evaluate.
type Decision struct {
	Effect   Effect
	State    State
	Reason   string
	Redirect string
}

// Allowed reports whether the view may proceed.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	Get() session.Snapshot
}

// Gate evaluates requirements against the current session.
type Gate struct {
	sessions SessionReader
}

// NewGate creates a gate reading from sessions.
func NewGate(sessions SessionReader) *Gate {
	return &Gate{sessions: sessions}
}

// State returns the current gate state.
func (g *Gate) State() State {
	return StateOf(g.sessions.Get())
}

// Evaluate decides req against the current session.
func (g *Gate) Evaluate(req Requirement) Decision {
	return Evaluate(g.sessions.Get(), req)
}

// Evaluate decides req against snap.
//
// While hydrating no decision is made. Without a token every requirement is
// denied. With a token, Anyone is allowed and AnyRole is allowed only when
// the profile role is a member of the set; a missing profile has no role.
func Evaluate(snap session.Snapshot, req Requirement) Decision {
	state := StateOf(snap)

	switch state {
	case StateHydrating:
		return Decision{Effect: EffectWait, State: state}
	case StateUnauthorized:
		return Decision{Effect: EffectDeny, State: state, Reason: ReasonNoSession, Redirect: RedirectLogin}
	}

	if !req.RequiresRole() {
		return Decision{Effect: EffectAllow, State: state}
	}

	if snap.User != nil {
		role, _ := ParseRole(snap.User.Role)
		if req.roles.Contains(role) {
			return Decision{Effect: EffectAllow, State: state}
		}
	}
	return Decision{Effect: EffectDeny, State: state, Reason: ReasonRole, Redirect: RedirectLogin}
}
