package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/game"
)

var rdbClient *redis.Client
var wsConfig *config.Config

func SetRedisClient(r *redis.Client, cfg *config.Config) {
	rdbClient = r
	wsConfig = cfg
}

// StartSessionEventSubscriber relays session events published on Redis to the
// WebSocket clients of each session. It returns once ctx is cancelled.
func StartSessionEventSubscriber(ctx context.Context) error {
	if rdbClient == nil {
		log.Println("[WS] Redis client not set; session event subscriber not started")
		return nil
	}

	pubsub := rdbClient.Subscribe(ctx, game.SessionEventsChannel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	log.Printf("[WS] %s subscriber started", game.SessionEventsChannel)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[WS] %s subscriber stopping", game.SessionEventsChannel)
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			relayEvent(SessionHub, []byte(msg.Payload))
		}
	}
}

// relayEvent forwards one published event to its session room. It reports
// how many clients received it.
func relayEvent(h *Hub, payload []byte) int {
	var head struct {
		Type         string `json:"type"`
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		log.Printf("[WS] invalid event payload: %v", err)
		return 0
	}
	if head.SessionToken == "" {
		log.Printf("[WS] event %s without session token", head.Type)
		return 0
	}

	switch head.Type {
	case "miss", "paddle_hit", "game_over", "session_idle":
	default:
		log.Printf("[WS] unknown event type: %s", head.Type)
		return 0
	}

	n := h.Broadcast(head.SessionToken, "", payload)
	if n == 0 {
		log.Printf("[WS] no clients for session %s; %s not delivered", head.SessionToken, head.Type)
	}
	return n
}
