package main

import (
	"log/slog"
	"net/http"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/metrics"
	"github.com/adampresley/fotofacil/pkg/models"
)

type identityResolver interface {
	Resolve(r *http.Request) *models.Identity
	SignOut(w http.ResponseWriter, r *http.Request)
}

/*
newAccessMiddleware runs the access decision for every request, whatever
the method. Allowed requests carry the resolved identity in their context.
*/
func newAccessMiddleware(resolver identityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := resolver.Resolve(r)
			category := access.ClassifyRoute(r.URL.Path)
			role := access.ClassifyRole(identity)
			decision := access.Decide(category, role)

			metrics.AccessDecisionsTotal.WithLabelValues(category.String(), decision.Outcome.String()).Inc()

			if decision.ForceSignOut {
				slog.Warn("signing out identity without a valid role", "identityID", identity.ID, "path", r.URL.Path)
				metrics.ForcedSignOutsTotal.Inc()
				resolver.SignOut(w, r)
			}

			if decision.Outcome == access.Redirect {
				redirect(w, r, decision.Location)
				return
			}

			ctx := access.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redirect sends the browser elsewhere. Htmx requests get an HX-Redirect header instead of a 3xx.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	if httphelpers.IsHtmx(r) {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, location, http.StatusSeeOther)
}
