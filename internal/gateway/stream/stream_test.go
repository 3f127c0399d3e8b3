package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/gateway/reportbus"
)

func TestStreamDeliversFilteredReport(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := reportbus.New(logger)
	defer bus.Close()

	h := New(bus, logger)
	router := mux.NewRouter()
	h.Register(router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/reports/stream?symbol=BTC-USD"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register its subscription before
	// publishing, since Subscribe races the first Publish otherwise.
	time.Sleep(100 * time.Millisecond)

	bus.Publish(reportbus.Report{OrderID: 7, Symbol: "BTC-USD", EventKind: reportbus.EventFill})
	bus.Publish(reportbus.Report{OrderID: 8, Symbol: "ETH-USD", EventKind: reportbus.EventFill})

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got reportbus.Report
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.OrderID != 7 {
		t.Fatalf("expected order 7, got %d", got.OrderID)
	}
}
