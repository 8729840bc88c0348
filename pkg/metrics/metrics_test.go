package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequest(t *testing.T) {
	c := RequestsTotal.WithLabelValues("GET", "protected", "429")
	before := testutil.ToFloat64(c)

	RecordRequest("GET", "protected", 429, 15*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordRejection(t *testing.T) {
	c := Rejections.WithLabelValues("rate_limited")
	before := testutil.ToFloat64(c)

	RecordRejection("rate_limited")
	RecordRejection("rate_limited")

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}
