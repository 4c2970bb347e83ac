package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func testServer(t *testing.T, stats StatsFunc) *Server {
	t.Helper()
	server := NewServer(&Config{
		Port:   0, // Use random available port
		Stats:  stats,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	// Give server time to start
	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketConnection_WelcomeStats(t *testing.T) {
	stats := func() StatsData {
		return StatsData{
			PendingByEntity: map[string]int{"fields": 2},
			QueueUnsynced:   1,
			RemoteReachable: true,
		}
	}
	server := testServer(t, stats)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// The welcome message carries current stats
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStats {
		t.Errorf("Expected welcome type %s, got %s", MessageTypeStats, msg.Type)
	}

	var welcome StatsData
	if err := json.Unmarshal(msg.Data, &welcome); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if welcome.PendingByEntity["fields"] != 2 {
		t.Errorf("PendingByEntity[fields] = %d, want 2", welcome.PendingByEntity["fields"])
	}
}

func TestBroadcastEvent_ReachesClient(t *testing.T) {
	server := testServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	server.BroadcastEvent(MessageTypeRecordPushed, RecordPushedData{
		Entity: "field",
		ID:     "field-1",
		Action: "created",
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeRecordPushed {
		t.Errorf("Expected message type %s, got %s", MessageTypeRecordPushed, msg.Type)
	}

	var pushed RecordPushedData
	if err := json.Unmarshal(msg.Data, &pushed); err != nil {
		t.Fatalf("Failed to unmarshal record data: %v", err)
	}
	if pushed.ID != "field-1" || pushed.Entity != "field" {
		t.Errorf("Record data = %+v, want field/field-1", pushed)
	}
}

func TestMultipleClients(t *testing.T) {
	server := testServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	numClients := 3
	for i := 0; i < numClients; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("Failed to read welcome message for client %d: %v", i, err)
		}
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want 'ok'", body["status"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := testServer(t, func() StatsData {
		return StatsData{
			PendingByEntity: map[string]int{"workers": 4},
			QueueUnsynced:   2,
		}
	})

	resp, err := http.Get("http://" + server.GetAddr() + "/stats")
	if err != nil {
		t.Fatalf("Failed to GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var stats StatsData
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats body: %v", err)
	}
	if stats.PendingByEntity["workers"] != 4 {
		t.Errorf("PendingByEntity[workers] = %d, want 4", stats.PendingByEntity["workers"])
	}
	if stats.QueueUnsynced != 2 {
		t.Errorf("QueueUnsynced = %d, want 2", stats.QueueUnsynced)
	}
}
