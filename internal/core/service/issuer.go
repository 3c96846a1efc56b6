package service

import (
	"fmt"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/token"
	"github.com/sirpyerre/realm-auth/internal/pkg/metrics"
)

// Issuer mints global and project tokens. The global secret comes from
// configuration; project secrets come from the store with each account.
type Issuer struct {
	codec        *token.Codec
	globalSecret []byte
}

func NewIssuer(codec *token.Codec, globalSecret string) *Issuer {
	return &Issuer{codec: codec, globalSecret: []byte(globalSecret)}
}

// Global signs a global-realm token for userID.
func (i *Issuer) Global(userID string, role *domain.Role) (string, error) {
	claims := token.NewClaims(token.GlobalNamespace, token.GlobalPartition, userID, role)
	tok, err := i.codec.Encode(claims, i.globalSecret)
	if err != nil {
		return "", domain.Internal("issue global token", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(metrics.ScopeGlobal).Inc()
	return tok, nil
}

// Project signs a realm token with the realm's own secret. A nil realm is
// a global-only identity and yields no token.
func (i *Issuer) Project(realm *domain.Realm, userID string, role *domain.Role) (*string, error) {
	if realm == nil {
		return nil, nil
	}
	tok, err := i.Realm(*realm, token.NewClaims(realm.Namespace, realm.Partition, userID, role))
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// Realm re-signs claims with the realm secret.
func (i *Issuer) Realm(realm domain.Realm, claims token.Claims) (string, error) {
	if realm.Secret == "" {
		return "", fmt.Errorf("issue project token: %w", domain.ErrRealmNotFound)
	}
	tok, err := i.codec.Encode(claims, []byte(realm.Secret))
	if err != nil {
		return "", domain.Internal("issue project token", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(metrics.ScopeProject).Inc()
	return tok, nil
}

// ReissueGlobal re-signs already verified global claims.
func (i *Issuer) ReissueGlobal(claims token.Claims) (string, error) {
	tok, err := i.codec.Encode(claims, i.globalSecret)
	if err != nil {
		return "", domain.Internal("reissue global token", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(metrics.ScopeGlobal).Inc()
	return tok, nil
}

// attach stamps the global token and, for project-bound accounts, the
// project token onto au.
func (i *Issuer) attach(au *domain.AuthUser, realm *domain.Realm) error {
	g, err := i.Global(au.ID, au.Role)
	if err != nil {
		return err
	}
	au.GToken = g

	p, err := i.Project(realm, au.ID, au.Role)
	if err != nil {
		return err
	}
	au.PToken = p
	return nil
}
