package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmit-risk-server/internal/domain"
)

func TestStaffingFeed_Broadcast(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/staffing/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the hub a moment to process the registration before broadcasting.
	time.Sleep(100 * time.Millisecond)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/staffing/simulate", map[string]any{
		"cohort": []map[string]string{{"tier": "High", "condition": "diabetes"}},
		"unit":   "icu",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var summary domain.CohortSummary
	require.NoError(t, conn.ReadJSON(&summary))

	assert.Equal(t, 1, summary.TotalPatients)
	assert.Equal(t, 1, summary.TierCounts[domain.TierHigh])
	assert.Equal(t, "icu", summary.Unit)
}

func TestStaffingHub_ShutdownReleasesClients(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	hub := newStaffingHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.run(ctx)
		close(stopped)
	}()

	client := &staffingClient{send: make(chan *domain.CohortSummary, wsSendBuffer)}
	require.True(t, hub.add(client))

	cancel()
	<-stopped

	// Late unregisters and registers must not hang once the run loop has
	// exited.
	released := make(chan struct{})
	go func() {
		hub.drop(client)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}

	assert.False(t, hub.add(&staffingClient{send: make(chan *domain.CohortSummary, 1)}))
}

func TestStaffingHub_DropsWithoutSubscribers(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	hub := newStaffingHub(logger)

	// No run loop, no subscribers. Broadcast must not block.
	for i := 0; i < wsSendBuffer+4; i++ {
		hub.broadcast(&domain.CohortSummary{TotalPatients: i})
	}
}
