package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordElements("H1", "fvg", 3, 7)
	r.RecordScenarios("EURUSD", 2, 0)
	r.RecordDocumentWrite("state", true)
	r.RecordDocumentWrite("state", false)
	r.RecordDocumentWrite("state", false)
	r.RecordError("publish")

	assert.Equal(t, 3.0, testutil.ToFloat64(r.elementsActive.WithLabelValues("H1", "fvg")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.elementsTotal.WithLabelValues("H1", "fvg")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scenarios.WithLabelValues("EURUSD", "created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.scenarios.WithLabelValues("EURUSD", "expired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.documentWrites.WithLabelValues("state", "unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("publish")))
}
