package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveOperationAppearsInExposition(t *testing.T) {
	c := NewCollector("testns")
	c.ObserveOperation("exchange", "buy_nft", nil, 5*time.Millisecond)
	c.ObserveOperation("exchange", "buy_nft", errors.New("boom"), time.Millisecond)
	c.SetObjectCount("orders", 3)
	c.EventEmitted()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := string(body)
	for _, want := range []string{
		`testns_operations_total{component="exchange",operation="buy_nft",status="ok"} 1`,
		`testns_operations_total{component="exchange",operation="buy_nft",status="error"} 1`,
		`testns_objects{kind="orders"} 3`,
		`testns_events_emitted_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveOperation("x", "y", nil, 0)
	c.SetObjectCount("orders", 1)
	c.EventEmitted()
	if c.Handler() == nil {
		t.Fatal("nil collector must still return a handler")
	}
}
