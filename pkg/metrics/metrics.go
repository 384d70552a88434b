// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fotofacil"

// AccessDecisionsTotal counts access middleware decisions.
// Labels:
//   - category: route category (public, guest-only, photographer, client, unknown)
//   - outcome: allow or redirect
var AccessDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_decisions_total",
		Help:      "Total number of access decisions, labelled by route category and outcome.",
	},
	[]string{"category", "outcome"},
)

// ForcedSignOutsTotal counts sessions destroyed because the identity had no valid role.
var ForcedSignOutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_sign_outs_total",
		Help:      "Total number of sessions destroyed because the identity role was not recognised.",
	},
)

// AlbumGateDenialsTotal counts album gate denials.
// Label:
//   - reason: expired or invalid_password
var AlbumGateDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "album_gate_denials_total",
		Help:      "Total number of album gate denials, labelled by reason.",
	},
	[]string{"reason"},
)

// SelectionsTotal counts selection attempts.
// Label:
//   - result: selected, deselected, limit_reached, closed, error
var SelectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selections_total",
		Help:      "Total number of selection attempts, labelled by result.",
	},
	[]string{"result"},
)

// TaggingFailuresTotal counts AI tagging calls that failed and fell back to no tags.
var TaggingFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tagging_failures_total",
		Help:      "Total number of photo tagging calls that failed.",
	},
)

// EmailsSentTotal counts outgoing emails.
// Labels:
//   - kind: confirmation, album_ready, selection_submitted, support, download_ready
//   - result: ok or error
var EmailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Total number of emails sent, labelled by kind and result.",
	},
	[]string{"kind", "result"},
)

// PhotosUploadedTotal counts photos persisted by uploads.
var PhotosUploadedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photos_uploaded_total",
		Help:      "Total number of photos uploaded.",
	},
)
