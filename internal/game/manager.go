package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/leaderboard"
	"github.com/swingpong/backend/internal/physics"
)

const (
	// SessionEventsChannel carries score, miss and game-over events for every session.
	SessionEventsChannel = "session_events"
	idleSessionsKey      = "idle_sessions"
	snapshotTTL          = time.Hour
	snapshotEveryTicks   = 30
)

// ScoreSubmitter receives one entry per player when a game ends.
type ScoreSubmitter interface {
	Submit(ctx context.Context, e leaderboard.Entry) error
}

// MatchRecorder persists the final result of a session.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, m leaderboard.Match) error
}

// Player identifies who is holding a paddle.
type Player struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// SessionOptions configures a new session.
type SessionOptions struct {
	Mode     string
	Players  [2]Player
	Tunables *config.Tunables
	Seed     int64
}

// Session is one running game plus the controllers bound to it.
type Session struct {
	ID          string
	Token       string
	Mode        string
	Players     [2]Player
	CreatedAt   time.Time
	Controllers *device.Registry

	runner      *Runner
	submitGen   atomic.Uint64
	submitDelay time.Duration

	mu      sync.RWMutex
	latest  SimulationState
	subs    map[int]chan SimulationState
	nextSub int
}

// Latest returns the most recent snapshot published by the runner.
func (s *Session) Latest() SimulationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Subscribe streams snapshots. Slow readers only ever see the newest one.
func (s *Session) Subscribe() (<-chan SimulationState, func()) {
	ch := make(chan SimulationState, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) publish(st SimulationState) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.latest.Status != st.Status || s.latest.WorldVersion != st.WorldVersion
	s.latest = st
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
	return changed
}

func (s *Session) Start(ctx context.Context) error  { return s.runner.Start(ctx) }
func (s *Session) Pause(ctx context.Context) error  { return s.runner.Pause(ctx) }
func (s *Session) Resume(ctx context.Context) error { return s.runner.Resume(ctx) }

// SetControlMode switches how a side's controller drives its paddle.
func (s *Session) SetControlMode(ctx context.Context, side physics.Side, mode input.ControlMode) error {
	return s.runner.Do(ctx, func(sim *Simulation) error {
		sim.SetControlMode(side, mode)
		return nil
	})
}

// Restart rebuilds the game and cancels any score submission still pending
// from the previous one.
func (s *Session) Restart(ctx context.Context) error {
	s.submitGen.Add(1)
	return s.runner.Restart(ctx)
}

// Snapshot reads the live state from the runner, falling back to the last
// published snapshot once the runner has stopped.
func (s *Session) Snapshot(ctx context.Context) SimulationState {
	st, err := s.runner.Snapshot(ctx)
	if err != nil {
		return s.Latest()
	}
	return st
}

// Done is closed when the session's runner exits.
func (s *Session) Done() <-chan struct{} {
	return s.runner.Done()
}

// SessionManager manages every live session.
type SessionManager struct {
	sessions  map[string]*Session
	rdb       *redis.Client
	submitter ScoreSubmitter
	recorder  MatchRecorder
	config    *config.Config
	ctx       context.Context
	mu        sync.RWMutex
}

var (
	// Global session manager instance
	Manager *SessionManager
)

// InitializeManager sets up the global session manager.
func InitializeManager(ctx context.Context, rdb *redis.Client, submitter ScoreSubmitter, recorder MatchRecorder, cfg *config.Config) {
	Manager = NewSessionManager(ctx, rdb, submitter, recorder, cfg)
}

// NewSessionManager creates a session manager. Any of rdb, submitter and
// recorder may be nil; the matching side effects are then skipped.
func NewSessionManager(ctx context.Context, rdb *redis.Client, submitter ScoreSubmitter, recorder MatchRecorder, cfg *config.Config) *SessionManager {
	if cfg == nil {
		cfg = &config.Config{Game: config.DefaultTunables()}
	}
	return &SessionManager{
		sessions:  make(map[string]*Session),
		rdb:       rdb,
		submitter: submitter,
		recorder:  recorder,
		config:    cfg,
		ctx:       ctx,
	}
}

// generateToken generates a secure random token
func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// CreateSession builds a simulation and starts its runner. The game itself
// waits in NOT_STARTED until Start is called.
func (m *SessionManager) CreateSession(opts SessionOptions) (*Session, error) {
	tun := m.config.Game
	if opts.Tunables != nil {
		tun = *opts.Tunables
	}
	if opts.Mode != "" {
		tun.GameMode = opts.Mode
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	id, err := generateToken(8)
	if err != nil {
		return nil, err
	}
	token, err := generateToken(16)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}

	controllers := device.NewRegistry()
	sim, err := NewSimulation(tun, controllers, controllers, seed)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	s := &Session{
		ID:          "session_" + id,
		Token:       token,
		Mode:        tun.GameMode,
		Players:     opts.Players,
		CreatedAt:   time.Now(),
		Controllers: controllers,
		subs:        make(map[int]chan SimulationState),
		submitDelay: time.Duration(tun.SubmitDelayMs) * time.Millisecond,
	}
	s.latest = sim.Snapshot()
	s.runner = NewRunner(s.Token, sim, m)
	m.sessions[s.Token] = s
	m.mu.Unlock()

	go s.runner.Run(m.ctx)
	go m.reap(s)

	log.Printf("[SESSION] created %s (token=%s mode=%s)", s.ID, s.Token, s.Mode)
	// Redis writes run after m.mu is released.
	m.saveSnapshot(s.Token, s.latest)
	m.Touch(s.Token)
	return s, nil
}

// reap drops a session from the registry once its runner exits.
func (m *SessionManager) reap(s *Session) {
	<-s.runner.Done()
	m.mu.Lock()
	if cur, ok := m.sessions[s.Token]; ok && cur == s {
		delete(m.sessions, s.Token)
	}
	m.mu.Unlock()
	m.forget(s.Token)
	log.Printf("[SESSION] %s closed", s.ID)
}

// GetSession finds a live session by token.
func (m *SessionManager) GetSession(token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// EndSession quits a session and cancels any pending score submission.
func (m *SessionManager) EndSession(ctx context.Context, token string) error {
	s, err := m.GetSession(token)
	if err != nil {
		return err
	}
	s.submitGen.Add(1)
	if err := s.runner.Quit(ctx); err != nil {
		return fmt.Errorf("quit session %s: %w", token, err)
	}
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *SessionManager) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown quits every live session.
func (m *SessionManager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	tokens := make([]string, 0, len(m.sessions))
	for t := range m.sessions {
		tokens = append(tokens, t)
	}
	m.mu.RUnlock()
	for _, t := range tokens {
		if err := m.EndSession(ctx, t); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Printf("[SESSION] shutdown %s: %v", t, err)
		}
	}
}

// OnSnapshot implements Observer.
func (m *SessionManager) OnSnapshot(token string, st SimulationState) {
	s, err := m.GetSession(token)
	if err != nil {
		return
	}
	if changed := s.publish(st); changed || st.Tick%snapshotEveryTicks == 0 {
		go m.saveSnapshot(token, st)
	}
}

// OnEvents implements Observer.
func (m *SessionManager) OnEvents(token string, events []Event) {
	s, err := m.GetSession(token)
	if err != nil {
		return
	}
	for _, e := range events {
		switch e.Type {
		case EventWallHit, EventLagSpike:
			continue
		case EventGameOver:
			m.scheduleSubmission(s)
		}
		if m.rdb != nil {
			payload := EventPayload(token, e)
			if err := m.rdb.Publish(m.ctx, SessionEventsChannel, payload).Err(); err != nil {
				log.Printf("[SESSION] publish %s for %s failed: %v", e.Type, token, err)
			}
		}
	}
}

// EventPayload is the JSON published on the session events channel.
func EventPayload(token string, e Event) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"type":          string(e.Type),
		"session_token": token,
		"side":          e.Side,
		"ball":          e.Ball,
		"points":        e.Points,
		"score":         e.Score,
	})
	return b
}

// scheduleSubmission posts scores after the configured delay unless the
// session restarts or ends first.
func (m *SessionManager) scheduleSubmission(s *Session) {
	gen := s.submitGen.Load()
	st := s.Latest()

	time.AfterFunc(s.submitDelay, func() {
		if s.submitGen.Load() != gen {
			log.Printf("[LEADERBOARD] dropping stale submission for %s", s.Token)
			return
		}
		m.submitScores(s, st)
	})
}

func (m *SessionManager) submitScores(s *Session, st SimulationState) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if m.recorder != nil {
		if err := m.recorder.RecordMatch(ctx, MatchFor(s, st)); err != nil {
			log.Printf("[DB] record match %s failed: %v", s.Token, err)
		}
	}
	if m.submitter == nil {
		return
	}
	for _, e := range EntriesFor(s, st) {
		if err := m.submitter.Submit(ctx, e); err != nil {
			log.Printf("[LEADERBOARD] submit for %s failed: %v", e.UserID, err)
			continue
		}
		log.Printf("[LEADERBOARD] submitted %d for %s (%s)", e.BestScore, e.UserID, e.GameMode)
	}
}

// EntriesFor builds one leaderboard entry per identified player.
func EntriesFor(s *Session, st SimulationState) []leaderboard.Entry {
	scores := [2]int{st.Points.Player1, st.Points.Player2}
	var out []leaderboard.Entry
	for i, p := range s.Players {
		if p.UserID == "" {
			continue
		}
		out = append(out, leaderboard.Entry{
			UserID:    p.UserID,
			Username:  p.Username,
			BestScore: scores[i],
			GameMode:  s.Mode,
		})
	}
	return out
}

// MatchFor builds the match record for a finished session.
func MatchFor(s *Session, st SimulationState) leaderboard.Match {
	return leaderboard.Match{
		SessionToken: s.Token,
		GameMode:     s.Mode,
		Player1ID:    s.Players[0].UserID,
		Player2ID:    s.Players[1].UserID,
		Score1:       st.Score.Player1,
		Score2:       st.Score.Player2,
		Points1:      st.Points.Player1,
		Points2:      st.Points.Player2,
		Winner:       st.Winner,
		WorldVersion: st.WorldVersion,
		StartedAt:    s.CreatedAt,
		EndedAt:      time.Now(),
	}
}

// SessionStateKey is the Redis key caching a session's latest snapshot.
func SessionStateKey(token string) string {
	return "session:" + token + ":state"
}

func lastActiveKey(token string) string {
	return "session:" + token + ":last_active"
}

// saveSnapshot persists the snapshot to Redis
func (m *SessionManager) saveSnapshot(token string, st SimulationState) {
	if m.rdb == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := m.rdb.SetEx(m.ctx, SessionStateKey(token), data, snapshotTTL).Err(); err != nil {
		log.Printf("[SESSION] cache snapshot %s failed: %v", token, err)
	}
}

// LoadSnapshot reads the cached snapshot of a session, live or finished.
func (m *SessionManager) LoadSnapshot(ctx context.Context, token string) (SimulationState, error) {
	var st SimulationState
	if m.rdb == nil {
		return st, ErrSessionNotFound
	}
	data, err := m.rdb.Get(ctx, SessionStateKey(token)).Bytes()
	if err == redis.Nil {
		return st, ErrSessionNotFound
	}
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

// Touch records controller activity and pushes the idle deadline out.
func (m *SessionManager) Touch(token string) {
	if m.rdb == nil {
		return
	}
	now := time.Now()
	deadline := now.Add(time.Duration(m.config.SessionIdleSeconds) * time.Second)
	pipe := m.rdb.Pipeline()
	pipe.Set(m.ctx, lastActiveKey(token), now.Unix(), snapshotTTL)
	pipe.ZAdd(m.ctx, idleSessionsKey, redis.Z{Score: float64(deadline.Unix()), Member: token})
	if _, err := pipe.Exec(m.ctx); err != nil {
		log.Printf("[IDLE] touch %s failed: %v", token, err)
	}
}

func (m *SessionManager) forget(token string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.ZRem(m.ctx, idleSessionsKey, token).Err(); err != nil {
		log.Printf("[IDLE] forget %s failed: %v", token, err)
	}
}
