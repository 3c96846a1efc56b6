package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
	"github.com/sirpyerre/realm-auth/internal/core/token"
	"github.com/sirpyerre/realm-auth/internal/pkg/metrics"
)

const defaultPassTTL = 15 * time.Minute

// InterventionConfig tunes the one-time pass flow.
type InterventionConfig struct {
	PassTTL time.Duration
}

// InterventionService lets a globally authenticated identity descend into
// a project realm through a one-time pass, and refreshes tokens of either
// realm kind.
type InterventionService struct {
	realms  ports.RealmRepository
	limiter ports.AttemptLimiter
	codec   *token.Codec
	issuer  *Issuer
	audit   ports.AuditRecorder
	cfg     InterventionConfig
	log     zerolog.Logger
	newPass func() string
}

func NewInterventionService(
	realms ports.RealmRepository,
	limiter ports.AttemptLimiter,
	codec *token.Codec,
	issuer *Issuer,
	audit ports.AuditRecorder,
	cfg InterventionConfig,
	log zerolog.Logger,
) *InterventionService {
	if cfg.PassTTL <= 0 {
		cfg.PassTTL = defaultPassTTL
	}
	return &InterventionService{
		realms:  realms,
		limiter: limiter,
		codec:   codec,
		issuer:  issuer,
		audit:   audit,
		cfg:     cfg,
		log:     log,
		newPass: uuid.NewString,
	}
}

// InjectGuest stamps a fresh one-time pass on the caller's account inside
// realm and returns it. The plaintext is not stored and cannot be
// retrieved again.
func (s *InterventionService) InjectGuest(ctx context.Context, claims token.Claims, realm ports.RealmRef) (pass string, err error) {
	defer s.observe(domain.EventGuest, time.Now(), claims.ID, realm.Partition, &err)

	if err := validRealm(realm); err != nil {
		return "", err
	}

	pass = s.newPass()
	expiresAt := time.Now().UTC().Add(s.cfg.PassTTL)
	if err := s.realms.StampPass(ctx, realm, claims.ID, pass, expiresAt); err != nil {
		return "", s.surface("inject guest", err)
	}

	s.log.Info().Str("user_id", claims.ID).Str("ns", realm.Namespace).Str("db", realm.Partition).Msg("one-time pass issued")
	return pass, nil
}

// Join verifies the one-time pass, checks that it belongs to the caller's
// global identity and issues a realm token signed with the realm secret.
// The pass is consumed by the first verification, successful or not.
func (s *InterventionService) Join(ctx context.Context, claims token.Claims, in ports.JoinInput) (tok string, err error) {
	defer s.observe(domain.EventJoin, time.Now(), claims.ID, in.Partition, &err)

	realm := ports.RealmRef{Namespace: in.Namespace, Partition: in.Partition}
	if err := validRealm(realm); err != nil {
		return "", err
	}
	if in.Pass == "" {
		return "", domain.ErrInvalidCredentials
	}

	key := attemptKey(claims.ID, realm)
	allowed, err := s.limiter.Hit(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.ID).Msg("attempt limiter unavailable, allowing join")
	} else if !allowed {
		return "", domain.ErrTooManyAttempts
	}

	userID, err := s.realms.ConsumePass(ctx, realm, in.Pass)
	if err != nil {
		return "", s.surface("join", err)
	}

	secret, err := s.realms.ProjectSecret(ctx, in.Partition)
	if err != nil {
		return "", s.surface("join", err)
	}

	if userID != claims.ID {
		s.log.Error().Str("claims_id", claims.ID).Str("pass_user_id", userID).Str("db", in.Partition).Msg("one-time pass belongs to another identity")
		return "", domain.ErrIdentityMismatch
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.ID).Msg("failed to reset attempt counter")
	}

	return s.issuer.Realm(
		domain.Realm{Namespace: in.Namespace, Partition: in.Partition, Secret: secret},
		token.NewClaims(in.Namespace, in.Partition, userID, claims.Role),
	)
}

// Refresh re-signs a still valid token in its own realm. The global realm
// verifies with the process secret. Any other namespace first peeks at the
// unverified claims only to pick the realm secret, then verifies with it.
func (s *InterventionService) Refresh(ctx context.Context, in ports.RefreshInput) (tok string, err error) {
	var subject string
	start := time.Now()
	defer func() { s.observe(domain.EventRefresh, start, subject, in.Partition, &err) }()

	raw := token.BearerToken(in.Token)
	if raw == "" {
		return "", domain.ErrMissingToken
	}

	if in.Namespace == token.GlobalNamespace {
		claims, err := s.codec.Decode(raw, s.issuer.globalSecret)
		if err != nil {
			return "", fmt.Errorf("refresh global: %w", err)
		}
		if !claims.IsGlobal() {
			return "", fmt.Errorf("refresh global: %w: not a global token", domain.ErrInvalidToken)
		}
		subject = claims.ID
		return s.issuer.ReissueGlobal(claims)
	}

	if in.Partition == "" {
		return "", domain.ErrBadRealm
	}

	untrusted, err := s.codec.Peek(raw)
	if err != nil {
		return "", fmt.Errorf("refresh realm: %w", err)
	}
	if untrusted.DB != in.Partition {
		return "", fmt.Errorf("refresh realm: %w: partition mismatch", domain.ErrInvalidToken)
	}

	secret, err := s.realms.ProjectSecret(ctx, in.Partition)
	if err != nil {
		return "", s.surface("refresh", err)
	}

	claims, err := s.codec.Decode(raw, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("refresh realm: %w", err)
	}
	subject = claims.ID

	return s.issuer.Realm(domain.Realm{Namespace: claims.NS, Partition: claims.DB, Secret: secret}, claims)
}

func (s *InterventionService) surface(op string, err error) error {
	if isClientError(err) {
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("intervention operation failed")
	if errors.Is(err, domain.ErrInternal) {
		return err
	}
	return domain.Internal(op, err)
}

func (s *InterventionService) observe(kind domain.AuthEventKind, start time.Time, userID, realm string, err *error) {
	metrics.AuthOperationDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	metrics.AuthOperationsTotal.WithLabelValues(string(kind), outcomeLabel(*err)).Inc()

	outcome := domain.OutcomeSuccess
	if *err != nil {
		outcome = domain.OutcomeFailure
	}
	s.audit.Record(domain.AuthEvent{Kind: kind, UserID: userID, Realm: realm, Outcome: outcome, At: time.Now().UTC()})
}

func validRealm(r ports.RealmRef) error {
	if strings.TrimSpace(r.Namespace) == "" || strings.TrimSpace(r.Partition) == "" {
		return domain.ErrBadRealm
	}
	if r.Namespace == token.GlobalNamespace {
		return domain.ErrBadRealm
	}
	return nil
}

func attemptKey(userID string, r ports.RealmRef) string {
	return "join:" + r.Namespace + ":" + r.Partition + ":" + userID
}
