package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/swingpong/backend/internal/game"
	"github.com/swingpong/backend/internal/input"
	"github.com/vmihailenco/msgpack/v5"
)

const commandTimeout = 2 * time.Second

// StateFrame is the binary snapshot frame pushed to view clients.
type StateFrame struct {
	Type  string               `msgpack:"type"`
	State game.SimulationState `msgpack:"state"`
}

// EncodeState packs a snapshot as a msgpack frame.
func EncodeState(st game.SimulationState) ([]byte, error) {
	return msgpack.Marshal(StateFrame{Type: "state", State: st})
}

// HandleView streams a session's snapshots to a display and accepts
// lifecycle commands from it.
func HandleView(c *gin.Context) {
	token := c.Param("token")
	if game.Manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions unavailable"})
		return
	}
	session, err := game.Manager.GetSession(token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := newClient(conn, RoleView, token)
	SessionHub.register <- client

	go client.writePump()
	go streamState(client, session)
	go client.readLoop(SessionHub, func(kind int, data []byte) {
		if kind != websocket.TextMessage {
			return
		}
		handleViewMessage(client, session, data)
	})
}

// streamState forwards snapshots until either side goes away.
func streamState(c *Client, s *game.Session) {
	ch, unsub := s.Subscribe()
	defer unsub()

	push := func(st game.SimulationState) {
		data, err := EncodeState(st)
		if err != nil {
			log.Printf("[WS] encode state for %s: %v", s.Token, err)
			return
		}
		c.trySend(websocket.BinaryMessage, data)
	}
	push(s.Latest())

	for {
		select {
		case st := <-ch:
			push(st)
		case <-s.Done():
			push(s.Latest())
			return
		case <-c.done:
			return
		}
	}
}

type controlModeData struct {
	Side string `json:"side"`
	Mode string `json:"mode"`
}

func handleViewMessage(c *Client, s *game.Session, raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case "start":
		err = s.Start(ctx)
	case "pause":
		err = s.Pause(ctx)
	case "resume":
		err = s.Resume(ctx)
	case "restart":
		err = s.Restart(ctx)
	case "quit":
		err = game.Manager.EndSession(ctx, s.Token)
	case "control_mode":
		var data controlModeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid control mode data")
			return
		}
		side, perr := game.ParseSide(data.Side)
		if perr != nil {
			c.sendError(perr.Error())
			return
		}
		err = s.SetControlMode(ctx, side, input.ParseControlMode(data.Mode))
	default:
		c.sendError("Unknown message type")
		return
	}

	if err != nil {
		if !errors.Is(err, game.ErrInvalidTransition) {
			log.Printf("[WS] %s on session %s failed: %v", msg.Type, s.Token, err)
		}
		c.sendError(err.Error())
		return
	}
	c.sendJSON(map[string]interface{}{"type": "ack", "command": msg.Type})
}
