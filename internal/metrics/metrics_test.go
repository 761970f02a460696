package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserversAreSafeBeforeInit(t *testing.T) {
	// Collectors are nil until Init; observers must not panic.
	ObserveAPIRequest("ok")
	ObserveAPIRetry()
	ObserveRateLimitWait(time.Second)
	ObserveManifestCapture("found")
}

func TestInitAndObserve(t *testing.T) {
	Init()
	Init() // idempotent

	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues("ok"))
	ObserveAPIRequest("ok")
	require.Equal(t, before+1, testutil.ToFloat64(apiRequestsTotal.WithLabelValues("ok")))

	beforeRetries := testutil.ToFloat64(apiRetriesTotal)
	ObserveAPIRetry()
	require.Equal(t, beforeRetries+1, testutil.ToFloat64(apiRetriesTotal))

	beforeFound := testutil.ToFloat64(manifestCaptures.WithLabelValues("found"))
	ObserveManifestCapture("found")
	require.Equal(t, beforeFound+1, testutil.ToFloat64(manifestCaptures.WithLabelValues("found")))

	ObserveRateLimitWait(250 * time.Millisecond)
}
