package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharing(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewSharing(reg)
	require.NoError(t, err)

	m.ShareCreated()
	m.ShareCreated()
	m.SignatureSubmitted("mother")
	m.SignatureSubmitted("father")
	m.SignatureSubmitted("father")
	m.ShareCompleted()
	m.CompletionNotified()
	m.PollFailed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.sharesCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.signaturesSubmitted.WithLabelValues("mother")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.signaturesSubmitted.WithLabelValues("father")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sharesCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.completionsNotified))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.watcherPollErrors))
}

func TestSharing_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSharing(reg)
	require.NoError(t, err)

	_, err = NewSharing(reg)
	assert.Error(t, err)
}

func TestSharing_NilIsNoop(t *testing.T) {
	var m *Sharing
	assert.NotPanics(t, func() {
		m.ShareCreated()
		m.SignatureSubmitted("mother")
		m.ShareCompleted()
		m.CompletionNotified()
		m.PollFailed()
	})
}
