package core

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const ReloadPath = "/__teamsite_reload"

const reloadScript = `<script>(function(){var p=location.protocol==="https:"?"wss://":"ws://";var s=new WebSocket(p+location.host+"` + ReloadPath + `");s.onmessage=function(e){if(e.data==="reload"){location.reload();}};})();</script>`

type LiveReloaderInterface interface {
	BroadcastReload()
	Handler(http.ResponseWriter, *http.Request)
	Close() error
}

type LiveReloader struct {
	clients  map[*websocket.Conn]bool
	lock     sync.Mutex
	upgrader websocket.Upgrader
}

var NewLiveReloader = func() LiveReloaderInterface {
	return &LiveReloader{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (lr *LiveReloader) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := lr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// The hijacked conn keeps the server's ReadTimeout.
	_ = conn.SetReadDeadline(time.Time{})

	lr.lock.Lock()
	lr.clients[conn] = true
	lr.lock.Unlock()

	go func() {
		defer lr.drop(conn)

		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
	}()
}

func (lr *LiveReloader) BroadcastReload() {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	for conn := range lr.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			conn.Close()
			delete(lr.clients, conn)
		}
	}
}

// Close disconnects every client. Browsers reconnect on their next load.
func (lr *LiveReloader) Close() error {
	lr.lock.Lock()
	defer lr.lock.Unlock()

	for conn := range lr.clients {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		delete(lr.clients, conn)
	}
	return nil
}

func (lr *LiveReloader) clientCount() int {
	lr.lock.Lock()
	defer lr.lock.Unlock()
	return len(lr.clients)
}

func (lr *LiveReloader) drop(conn *websocket.Conn) {
	lr.lock.Lock()
	delete(lr.clients, conn)
	lr.lock.Unlock()
	conn.Close()
}

// injectReloadScript places the reload client before the last </body>, or
// appends it when the page has no body tag.
func injectReloadScript(html []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if idx == -1 {
		return append(html, reloadScript...)
	}

	out := make([]byte, 0, len(html)+len(reloadScript))
	out = append(out, html[:idx]...)
	out = append(out, reloadScript...)
	out = append(out, html[idx:]...)
	return out
}
