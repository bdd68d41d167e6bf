package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision labels recorded per authorization gate outcome.
const (
	decisionGranted         = "granted"
	decisionBypass          = "bypass"
	decisionDenied          = "denied"
	decisionUnauthenticated = "unauthenticated"
	decisionNotFound        = "not_found"
	decisionBadRequest      = "bad_request"
	decisionError           = "error"
)

var authzDecisions = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Number of authorization gate decisions, by gate and outcome.",
	},
	[]string{"gate", "decision"},
)
