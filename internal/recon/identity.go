package recon

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/G381N/BugBesty/internal/store"
)

// ErrNoIdentity is returned when no strategy could resolve a user
var ErrNoIdentity = errors.New("could not resolve user identity")

// TokenInfo carries the authenticated token fields identity resolution
// works from
type TokenInfo struct {
	Subject string
	Email   string
}

// IdentityStrategy is one way of mapping a token to a stored user id.
// Resolve returns "" when the strategy has no answer; an error aborts
// the whole chain.
type IdentityStrategy interface {
	Name() string
	Resolve(ctx context.Context, tok TokenInfo) (string, error)
}

// IdentityResolver runs an ordered strategy list; the first non-empty
// answer wins. The order is explicit configuration, not an accident of
// call sites, so every resolution is auditable from the log.
type IdentityResolver struct {
	strategies []IdentityStrategy
	log        *logrus.Entry
}

// NewIdentityResolver composes the standard chain: token subject, then
// email lookup, then (only when allowCreate is set) user creation on
// miss. Create-on-miss stays off for destructive flows.
func NewIdentityResolver(st store.Store, allowCreate bool, log *logrus.Logger) *IdentityResolver {
	strategies := []IdentityStrategy{
		subjectStrategy{},
		emailLookupStrategy{store: st},
	}
	if allowCreate {
		strategies = append(strategies, createOnMissStrategy{store: st})
	}
	return NewIdentityResolverWith(strategies, log)
}

// NewIdentityResolverWith builds a resolver from an explicit strategy list
func NewIdentityResolverWith(strategies []IdentityStrategy, log *logrus.Logger) *IdentityResolver {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &IdentityResolver{
		strategies: strategies,
		log:        log.WithField("component", "identity"),
	}
}

// Resolve walks the strategies in order and returns the first user id
func (r *IdentityResolver) Resolve(ctx context.Context, tok TokenInfo) (string, error) {
	for _, strategy := range r.strategies {
		id, err := strategy.Resolve(ctx, tok)
		if err != nil {
			return "", err
		}
		if id != "" {
			// create-on-miss hits are account creations and must be
			// visible in the audit trail, not just debug noise
			entry := r.log.WithFields(logrus.Fields{"strategy": strategy.Name(), "user": id})
			if strategy.Name() == "create-on-miss" {
				entry.Info("identity resolved")
			} else {
				entry.Debug("identity resolved")
			}
			return id, nil
		}
	}
	return "", ErrNoIdentity
}

// subjectStrategy trusts the token's subject claim
type subjectStrategy struct{}

func (subjectStrategy) Name() string { return "token-subject" }

func (subjectStrategy) Resolve(_ context.Context, tok TokenInfo) (string, error) {
	return tok.Subject, nil
}

// emailLookupStrategy maps the token email to a stored user
type emailLookupStrategy struct {
	store store.Store
}

func (emailLookupStrategy) Name() string { return "email-lookup" }

func (s emailLookupStrategy) Resolve(ctx context.Context, tok TokenInfo) (string, error) {
	if tok.Email == "" {
		return "", nil
	}
	u, err := s.store.GetUserByEmail(ctx, tok.Email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// createOnMissStrategy registers an account for a verified email that
// has no stored user yet
type createOnMissStrategy struct {
	store store.Store
}

func (createOnMissStrategy) Name() string { return "create-on-miss" }

func (s createOnMissStrategy) Resolve(ctx context.Context, tok TokenInfo) (string, error) {
	if tok.Email == "" {
		return "", nil
	}
	u := &store.User{
		ID:        uuid.NewString(),
		Email:     tok.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return "", err
	}
	return u.ID, nil
}
