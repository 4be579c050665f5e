package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/swingpong/backend/internal/config"
)

// StartIdleWorker starts a background worker that ends sessions whose
// controllers have gone quiet, using the idle_sessions sorted set.
func StartIdleWorker(ctx context.Context, rdb *redis.Client, cfg *config.Config) {
	if rdb == nil || cfg == nil {
		log.Println("[IDLE] Redis or config missing; idle worker not started")
		return
	}

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.IdleWorkerPollInterval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case <-ticker.C:
				sweepIdle(ctx, rdb, cfg, time.Now())
			}
		}
	}()
}

func sweepIdle(ctx context.Context, rdb *redis.Client, cfg *config.Config, now time.Time) {
	members, err := rdb.ZRangeByScore(ctx, idleSessionsKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		log.Printf("[IDLE] Failed to fetch idle sessions: %v", err)
		return
	}

	for _, token := range members {
		// Only one worker gets to act on a member
		if removed, _ := rdb.ZRem(ctx, idleSessionsKey, token).Result(); removed == 0 {
			continue
		}
		last, _ := rdb.Get(ctx, lastActiveKey(token)).Result()
		lastTs, _ := strconv.ParseInt(last, 10, 64)
		if !idleExpired(lastTs, now, cfg.SessionIdleSeconds) {
			// touched since it was queued; requeue at its real deadline
			deadline := lastTs + int64(cfg.SessionIdleSeconds)
			rdb.ZAdd(ctx, idleSessionsKey, redis.Z{Score: float64(deadline), Member: token})
			continue
		}
		if Manager == nil {
			continue
		}
		if err := Manager.EndSession(ctx, token); err != nil {
			log.Printf("[IDLE] end session %s: %v", token, err)
			continue
		}
		log.Printf("[IDLE] Ended session %s after %ds without controller input", token, now.Unix()-lastTs)

		payload := map[string]interface{}{"type": "session_idle", "session_token": token, "message": "Session ended due to inactivity"}
		b, _ := json.Marshal(payload)
		if n, err := rdb.Publish(ctx, SessionEventsChannel, b).Result(); err != nil {
			log.Printf("[IDLE] publish idle end failed: session=%s err=%v", token, err)
		} else {
			log.Printf("[IDLE] published idle end: session=%s subscribers=%d", token, n)
		}
	}
}

// idleExpired reports whether a session last active at lastTs has been quiet
// for at least idleSeconds. A missing timestamp counts as expired.
func idleExpired(lastTs int64, now time.Time, idleSeconds int) bool {
	return now.Unix()-lastTs >= int64(idleSeconds)
}
