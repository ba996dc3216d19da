package infra

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 3 * time.Second,
}

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

// ServeWS upgrade the request and hand the connection to handler.
//
// handler owns the connection for its whole lifetime and should return when
// the peer goes away. A heartbeat probe runs beside it and closes the
// connection when pongs stop coming back.
func ServeWS(c echo.Context, handler func(echo.Context, *websocket.Conn) error) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	go heartbeatRoutine(conn)
	go processRoutine(c, conn, handler)
	return nil
}

func heartbeatRoutine(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			return
		}
	}
}

func processRoutine(c echo.Context, conn *websocket.Conn, handler func(echo.Context, *websocket.Conn) error) {
	defer conn.Close()
	handler(c, conn)
}
