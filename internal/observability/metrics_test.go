package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPushSubscriberGaugeTracksProcessTotal(t *testing.T) {
	EnsureRegistered()
	base := testutil.ToFloat64(getMetrics().pushSubscribers)

	// Subscriptions on separate sessions accumulate, and one closing
	// takes away only its own contribution.
	IncPushSubscribers()
	IncPushSubscribers()
	assert.Equal(t, base+2, testutil.ToFloat64(getMetrics().pushSubscribers))

	DecPushSubscribers()
	assert.Equal(t, base+1, testutil.ToFloat64(getMetrics().pushSubscribers))

	DecPushSubscribers()
	assert.Equal(t, base, testutil.ToFloat64(getMetrics().pushSubscribers))
}
