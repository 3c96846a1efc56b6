package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
	"github.com/sirpyerre/realm-auth/internal/core/token"
	"github.com/sirpyerre/realm-auth/internal/pkg/metrics"
)

// AuthService implements signup, credential login and session reload for
// the global realm.
type AuthService struct {
	repo   ports.IdentityRepository
	issuer *Issuer
	audit  ports.AuditRecorder
	log    zerolog.Logger
}

func NewAuthService(repo ports.IdentityRepository, issuer *Issuer, audit ports.AuditRecorder, log zerolog.Logger) *AuthService {
	return &AuthService{repo: repo, issuer: issuer, audit: audit, log: log}
}

// Signup creates the user, its role and join edges in one transaction and
// returns the authenticated view with tokens attached. New users always
// start as parti.
func (s *AuthService) Signup(ctx context.Context, in ports.SignupInput) (au *domain.AuthUser, err error) {
	defer s.observe(domain.EventSignup, time.Now(), &au, &err, in.Username)

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.ErrBadInput
	}

	var projectKey string
	if in.ProjectID != "" {
		projectKey, err = domain.ParseProjectID(in.ProjectID)
		if err != nil {
			s.log.Warn().Str("project", in.ProjectID).Msg("signup rejected: bad project id")
			return nil, err
		}
	}

	account, err := s.repo.CreateUser(ctx, domain.NewUser{
		Username:   username,
		Password:   in.Password,
		ProjectKey: projectKey,
	})
	if err != nil {
		return nil, s.surface("signup", err)
	}

	account.Role = domain.DefaultRole.Ptr()
	au = domain.NewAuthUser(account)
	if err := s.issuer.attach(au, account.Realm()); err != nil {
		return nil, s.surface("signup", err)
	}

	s.log.Info().Str("user_id", au.ID).Str("project", projectKey).Msg("user signed up")
	return au, nil
}

// Login verifies username and password inside the store. Unknown users and
// wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, username, password string) (au *domain.AuthUser, err error) {
	defer s.observe(domain.EventLogin, time.Now(), &au, &err, username)

	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByCredentials(ctx, username, password)
	if err != nil {
		return nil, s.surface("login", err)
	}

	au = domain.NewAuthUser(account)
	if err := s.issuer.attach(au, account.Realm()); err != nil {
		return nil, s.surface("login", err)
	}
	return au, nil
}

// Session reloads the account behind verified global claims and reissues
// both tokens with the role currently stored.
func (s *AuthService) Session(ctx context.Context, claims token.Claims) (au *domain.AuthUser, err error) {
	defer s.observe(domain.EventSession, time.Now(), &au, &err, "")

	account, err := s.repo.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, s.surface("session", err)
	}

	au = domain.NewAuthUser(account)
	if err := s.issuer.attach(au, account.Realm()); err != nil {
		return nil, s.surface("session", err)
	}
	return au, nil
}

// surface logs internal failures with their cause; client-facing kinds
// pass through untouched.
func (s *AuthService) surface(op string, err error) error {
	if errors.Is(err, domain.ErrInternal) {
		s.log.Error().Err(err).Str("op", op).Msg("auth operation failed")
		return err
	}
	if isClientError(err) {
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("auth operation failed")
	return domain.Internal(op, err)
}

func (s *AuthService) observe(kind domain.AuthEventKind, start time.Time, au **domain.AuthUser, err *error, username string) {
	metrics.AuthOperationDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	metrics.AuthOperationsTotal.WithLabelValues(string(kind), outcomeLabel(*err)).Inc()

	ev := domain.AuthEvent{Kind: kind, Username: username, Realm: token.GlobalNamespace, At: time.Now().UTC()}
	if *err == nil {
		ev.Outcome = domain.OutcomeSuccess
		if *au != nil {
			ev.UserID = (*au).ID
			ev.Username = (*au).Username
		}
	} else {
		ev.Outcome = domain.OutcomeFailure
	}
	s.audit.Record(ev)
}

func isClientError(err error) bool {
	for _, target := range []error{
		domain.ErrBadInput,
		domain.ErrUserExists,
		domain.ErrInvalidCredentials,
		domain.ErrMissingToken,
		domain.ErrInvalidToken,
		domain.ErrForbidden,
		domain.ErrTooManyAttempts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrBadInput):
		return "bad_input"
	case errors.Is(err, domain.ErrUserExists):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrMissingToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, domain.ErrIdentityMismatch):
		return "identity_mismatch"
	default:
		return "internal"
	}
}
