package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// A peer that stops reading must not hold a send forever: once the kernel
// buffers fill, the write deadline fires and the send returns an error.
func TestSendFailsAgainstStalledPeer(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	serverConn := <-serverConns
	defer serverConn.Close()

	c := &connection{
		sessionID: "s1",
		userID:    "alice",
		conn:      serverConn,
		writeWait: 100 * time.Millisecond,
	}

	// The client never reads, so repeated large sends fill the socket
	// buffers and the deadline kicks in.
	payload := map[string]string{"data": strings.Repeat("x", 256*1024)}
	deadline := time.Now().Add(5 * time.Second)
	var sendErr error
	for time.Now().Before(deadline) {
		if sendErr = c.send(payload); sendErr != nil {
			break
		}
	}
	if sendErr == nil {
		t.Fatal("send never failed against a peer that stopped reading")
	}
}
