package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordIdentify(t *testing.T) {
	before := testutil.ToFloat64(IdentifyTotal.WithLabelValues("http", "merged"))

	RecordIdentify("http", "merged", 0.012)
	RecordIdentify("http", "merged", 0.020)

	assert.Equal(t, before+2, testutil.ToFloat64(IdentifyTotal.WithLabelValues("http", "merged")))
}

func TestRecordMerge(t *testing.T) {
	before := testutil.ToFloat64(ContactsDemotedTotal)
	RecordMerge(3)
	assert.Equal(t, before+3, testutil.ToFloat64(ContactsDemotedTotal))
}

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit"))
	RecordCacheLookup("hit")
	assert.Equal(t, before+1, testutil.ToFloat64(CacheRequestsTotal.WithLabelValues("hit")))
}
