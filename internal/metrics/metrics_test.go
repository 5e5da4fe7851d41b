package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("list", "200"))
	RecordRequest("list", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(requestsTotal.WithLabelValues("list", "200"))

	if after-before != 1 {
		t.Errorf("webup_requests_total{op=list,status=200} delta = %v, want 1", after-before)
	}

	before = testutil.ToFloat64(requestsTotal.WithLabelValues("move", "error"))
	RecordRequest("move", 0, time.Millisecond)
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("move", "error")) - before; got != 1 {
		t.Errorf("status 0 should be labelled error, delta = %v", got)
	}
}

func TestRecordUpload(t *testing.T) {
	bytesBefore := testutil.ToFloat64(uploadBytes)

	RecordUpload("completed", 100)
	RecordUpload("failed", 50)

	if got := testutil.ToFloat64(uploadBytes) - bytesBefore; got != 100 {
		t.Errorf("upload bytes delta = %v, want 100 (failed uploads excluded)", got)
	}
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(3)
	if got := testutil.ToFloat64(queueDepth); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
}

func TestHandler(t *testing.T) {
	RecordStaleListing()
	RecordAlert("danger")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"webup_stale_listings_total", "webup_alerts_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestObserveDroppedEvents(t *testing.T) {
	ObserveDroppedEvents(func() int64 { return 7 })
	// A second source is ignored rather than panicking
	ObserveDroppedEvents(func() int64 { return 99 })

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if body := rec.Body.String(); !strings.Contains(body, "webup_events_dropped_total 7") {
		t.Errorf("metrics output missing dropped event count:\n%s", body)
	}
}
