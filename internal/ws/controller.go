package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/swingpong/backend/internal/auth"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/game"
	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/physics"
	"github.com/vmihailenco/msgpack/v5"
)

const touchEvery = time.Second

// sideColors lights each controller in its paddle's colour.
var sideColors = [2][3]uint8{
	physics.Left:  {0, 96, 255},
	physics.Right: {255, 48, 0},
}

// DecodeSample reads a controller sample. Text frames carry JSON, binary
// frames carry msgpack.
func DecodeSample(kind int, data []byte) (input.ControlInput, error) {
	var in input.ControlInput
	var err error
	switch kind {
	case websocket.TextMessage:
		err = json.Unmarshal(data, &in)
	case websocket.BinaryMessage:
		err = msgpack.Unmarshal(data, &in)
	default:
		err = errors.New("unsupported frame type")
	}
	return in, err
}

// HandleController binds a remote controller to a paddle and feeds its
// samples into the session.
func HandleController(c *gin.Context) {
	if game.Manager == nil || wsConfig == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions unavailable"})
		return
	}
	claims, err := auth.ParseControllerToken(wsConfig.ControllerTokenSecret, c.Query("ct"))
	if err != nil || claims.Session != c.Param("token") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
		return
	}
	session, err := game.Manager.GetSession(claims.Session)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	buf := device.NewBuffer(device.ParseKind(claims.Kind))
	side, err := bind(session.Controllers, buf, claims.Side)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		session.Controllers.Unbind(buf)
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := newClient(conn, RoleController, session.Token)
	SessionHub.register <- client
	log.Printf("[WS] %s controller bound to %s paddle in session %s", buf.Kind(), side, session.Token)

	client.sendJSON(map[string]interface{}{"type": "bound", "side": side.String(), "kind": string(buf.Kind())})
	color := sideColors[side]
	session.Controllers.SetLED(side, color[0], color[1], color[2])

	go client.writePump()
	go forwardCommands(client, buf)

	var lastTouch atomic.Int64
	go func() {
		client.readLoop(SessionHub, func(kind int, data []byte) {
			in, err := DecodeSample(kind, data)
			if err != nil {
				client.sendError("Invalid sample")
				return
			}
			buf.Push(in)
			now := time.Now()
			if now.UnixNano()-lastTouch.Load() >= int64(touchEvery) {
				lastTouch.Store(now.UnixNano())
				game.Manager.Touch(session.Token)
			}
		})
		session.Controllers.Unbind(buf)
		log.Printf("[WS] %s paddle released in session %s", side, session.Token)
	}()
}

func bind(reg *device.Registry, buf *device.Buffer, sideName string) (physics.Side, error) {
	if sideName == "" {
		return reg.Bind(buf)
	}
	side, err := game.ParseSide(sideName)
	if err != nil {
		return 0, err
	}
	return side, reg.BindSide(side, buf)
}

// forwardCommands delivers rumble and LED commands to the controller.
func forwardCommands(c *Client, buf *device.Buffer) {
	for {
		select {
		case cmd := <-buf.Commands():
			c.sendJSON(cmd)
		case <-c.done:
			return
		}
	}
}
