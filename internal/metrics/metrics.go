package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "album_bracket"

var (
	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_total",
		Help:      "Votes cast, by outcome.",
	}, []string{"result"})

	BracketsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "brackets_started_total",
		Help:      "Brackets seeded and made active.",
	})

	BracketsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "brackets_completed_total",
		Help:      "Brackets that crowned a champion.",
	})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "metadata_fetch_seconds",
		Help:      "Time spent fetching album or playlist metadata.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
)

// Vote outcomes
const (
	VoteAccepted = "accepted"
	VoteRejected = "rejected"
	VoteConflict = "conflict"
)

func ObserveFetch(source string, start time.Time) {
	FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
