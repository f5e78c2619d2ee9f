package notifyhub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/fistoar/crm-realtime/types"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := New()
	router := gin.New()
	router.GET("/notify", HandleNotifyWS(hub))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/notify"
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	before := hub.Clients()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() <= before {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) types.Notification {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var n types.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return n
}

func TestHubToastReachesEveryClient(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, hub, url)
	b := dial(t, hub, url)

	hub.Toast("New Message", "Bo: hi")
	for _, conn := range []*websocket.Conn{a, b} {
		n := readNotification(t, conn)
		if n.Type != types.NotifyTypeToast || n.Title != "New Message" || n.Message != "Bo: hi" {
			t.Errorf("unexpected toast %+v", n)
		}
	}
}

func TestHubReplaysLastStatus(t *testing.T) {
	hub, url := startHub(t)
	hub.PushStatus(types.ConnectionStatus{
		State:        types.StateDisconnected,
		Message:      "Connection lost",
		Visible:      true,
		RetryEnabled: true,
	})

	conn := dial(t, hub, url)
	n := readNotification(t, conn)
	if n.Type != types.NotifyTypeStatus || n.Message != "Connection lost" {
		t.Fatalf("unexpected status %+v", n)
	}
	if n.Data["state"] != string(types.StateDisconnected) || n.Data["retryEnabled"] != true {
		t.Errorf("status data = %v", n.Data)
	}
}

func TestHubBroadcastReload(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url)

	for _, s := range types.ReloadSignals {
		hub.BroadcastReload(s)
	}
	for _, want := range types.ReloadSignals {
		n := readNotification(t, conn)
		if n.Type != types.NotifyTypeReload || n.Message != want {
			t.Errorf("got %+v, want reload %s", n, want)
		}
	}
}

func TestHubUnregisterOnClose(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed connection still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(nil)
}
