package domain

import "time"

// AuthEventKind names an auditable authentication step.
type AuthEventKind string

const (
	EventSignup  AuthEventKind = "signup"
	EventLogin   AuthEventKind = "login"
	EventSession AuthEventKind = "session"
	EventGuest   AuthEventKind = "guest"
	EventJoin    AuthEventKind = "join"
	EventRefresh AuthEventKind = "refresh"
)

// AuthEvent is one entry of the authentication audit trail. It never
// carries credentials or tokens.
type AuthEvent struct {
	Kind     AuthEventKind
	UserID   string
	Username string
	Realm    string
	Outcome  string
	At       time.Time
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
