package access

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/fotofacil/pkg/models"
)

type IdentityLookup interface {
	GetByID(ctx context.Context, id uint) (*models.Identity, error)
}

type SessionResolverConfig struct {
	Identities     IdentityLookup
	SessionService sessions.Session[*models.Identity]
}

/*
SessionResolver turns the session cookie on a request into the identity it
belongs to. The identity is reloaded from the store on every request so a
deleted account, or one whose role was changed outside the app, is noticed
immediately.
*/
type SessionResolver struct {
	identities     IdentityLookup
	sessionService sessions.Session[*models.Identity]
}

func NewSessionResolver(config SessionResolverConfig) SessionResolver {
	return SessionResolver{
		identities:     config.Identities,
		sessionService: config.SessionService,
	}
}

// Resolve never fails. Any problem reading or validating the session reads as signed out.
func (s SessionResolver) Resolve(r *http.Request) *models.Identity {
	var (
		err      error
		session  *models.Identity
		identity *models.Identity
	)

	if session, err = s.sessionService.Get(r); err != nil || session == nil || session.ID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second*5)
	defer cancel()

	if identity, err = s.identities.GetByID(ctx, session.ID); err != nil {
		slog.Debug("session identity could not be validated", "identityID", session.ID, "error", err)
		return nil
	}

	return identity
}

func (s SessionResolver) SignIn(w http.ResponseWriter, r *http.Request, identity *models.Identity) error {
	sessionIdentity := &models.Identity{
		BaseModel: models.BaseModel{ID: identity.ID},
		Email:     identity.Email,
		Role:      identity.Role,
	}

	if err := s.sessionService.Set(r, sessionIdentity); err != nil {
		return err
	}

	return s.sessionService.Save(w, r)
}

func (s SessionResolver) SignOut(w http.ResponseWriter, r *http.Request) {
	_ = s.sessionService.Destroy(w, r)
	_ = s.sessionService.Save(w, r)
}
