// Package link connects vehicles to their path trackers over WebSocket and
// exposes a REST API for path management.
package link

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/journal"
	"github.com/teslashibe/go-rover/pkg/pathtracker"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/robot"
)

const textMessage = websocket.TextMessage

// Journal is the event store a hub writes to and serves from.
type Journal interface {
	journal.Recorder
	List(ctx context.Context, vehicleID string, limit int) ([]journal.Event, error)
}

// Broadcaster publishes telemetry to dashboards.
type Broadcaster interface {
	BroadcastJSON(vehicleID string, v interface{}) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithJournal records mission events to j.
func WithJournal(j Journal) Option {
	return func(h *Hub) { h.journal = j }
}

// WithTelemetry publishes state snapshots to b.
func WithTelemetry(b Broadcaster) Option {
	return func(h *Hub) { h.telemetry = b }
}

// WithMotorSink also drives a local motor sink with every command.
func WithMotorSink(sink robot.MotorSink) Option {
	return func(h *Hub) { h.sink = sink }
}

// WithAutoAdvance controls whether a session continues to the next waypoint
// after each reached goal, by re-installing the rest of the path from the
// reached waypoint on. On by default. A session that does not continue
// stops the vehicle.
func WithAutoAdvance(on bool) Option {
	return func(h *Hub) { h.autoAdvance = on }
}

// WithWatchdog feeds w on every pose.
func WithWatchdog(w *robot.Watchdog) Option {
	return func(h *Hub) { h.watchdog = w }
}

// Hub manages WebSocket connections from vehicles. Each vehicle gets its own
// Session and tracker.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg         pathtracker.Config
	autoAdvance bool
	journal     Journal
	telemetry   Broadcaster
	sink        robot.MotorSink
	watchdog    *robot.Watchdog

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	posesReceived    atomic.Uint64
	invalidInputs    atomic.Uint64
	pathsSet         atomic.Uint64
	pathsRejected    atomic.Uint64
	goalsReached     atomic.Uint64
	targetsFound     atomic.Uint64
	sinkErrors       atomic.Uint64
}

// NewHub creates a vehicle hub whose trackers use cfg.
func NewHub(cfg pathtracker.Config, opts ...Option) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hub{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		autoAdvance: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/vehicle", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/vehicle", websocket.New(h.handleVehicle))
	app.Get("/ws/vehicle/:id", websocket.New(h.handleVehicle))
}

// handleVehicle handles a vehicle WebSocket connection
func (h *Hub) handleVehicle(c *websocket.Conn) {
	vehicleID := c.Params("id")
	if vehicleID == "" {
		vehicleID = uuid.NewString()
	}

	s, err := h.Connect(vehicleID, c)
	if err != nil {
		log.Error("vehicle session failed", "vehicle", vehicleID, "error", err)
		return
	}
	defer h.Disconnect(s)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("vehicle read ended", "vehicle", vehicleID, "error", err)
			return
		}
		h.messagesReceived.Add(1)
		h.HandleMessage(s, data)
	}
}

// Connect registers a session for vehicleID, replacing any previous one.
func (h *Hub) Connect(vehicleID string, conn writer) (*Session, error) {
	s, err := newSession(h, vehicleID, conn)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sessions[vehicleID] = s
	count := len(h.sessions)
	h.mu.Unlock()

	log.Info("vehicle connected", "vehicle", vehicleID, "total", count)
	s.publish()
	return s, nil
}

// Disconnect removes s if it is still the registered session for its vehicle
// and stops the local motors.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	if h.sessions[s.ID] == s {
		delete(h.sessions, s.ID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	s.writeMu.Lock()
	h.driveSink(&pathtracker.MotorCommand{})
	s.writeMu.Unlock()
	log.Info("vehicle disconnected", "vehicle", s.ID, "total", count)
}

// HandleMessage processes an incoming message from a vehicle
func (h *Hub) HandleMessage(s *Session, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.invalidInputs.Add(1)
		log.Debug("parse error", "vehicle", s.ID, "error", err)
		h.reject(s, err)
		return
	}

	switch msg.Type {
	case protocol.TypePose:
		pd, err := msg.GetPoseData()
		if err != nil {
			h.invalidInputs.Add(1)
			h.reject(s, err)
			return
		}
		pose, err := pd.ToPose()
		if err != nil {
			h.invalidInputs.Add(1)
			h.reject(s, err)
			return
		}
		if err := s.HandlePose(pose); err != nil {
			h.reject(s, err)
		}

	case protocol.TypeDetection:
		d, err := msg.GetDetectionData()
		if err != nil {
			h.invalidInputs.Add(1)
			h.reject(s, err)
			return
		}
		s.touch()
		s.HandleDetection(d.ToDetection())

	case protocol.TypePath:
		pd, err := msg.GetPathData()
		if err != nil {
			h.invalidInputs.Add(1)
			h.reject(s, err)
			return
		}
		s.touch()
		if _, _, err := s.SetPath(pd.ToPath()); err != nil {
			h.reject(s, err)
		}

	case protocol.TypePing:
		s.touch()
		ping, _ := msg.GetPingData()
		id := ""
		if ping != nil {
			id = ping.ID
		}
		if pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli()); err == nil {
			s.Send(pong)
		}

	default:
		log.Debug("ignoring message", "vehicle", s.ID, "type", msg.Type)
	}
}

// reject reports err back to the vehicle.
func (h *Hub) reject(s *Session, err error) {
	msg, mErr := protocol.NewErrorMessage(err)
	if mErr != nil {
		return
	}
	if sErr := s.Send(msg); sErr != nil {
		log.Debug("send error message failed", "vehicle", s.ID, "error", sErr)
	}
}

// driveSink forwards cmd to the local motor sink, if any.
func (h *Hub) driveSink(cmd *pathtracker.MotorCommand) {
	if h.sink == nil || cmd == nil {
		return
	}
	if err := h.sink.SendMotor(cmd.Left, cmd.Right); err != nil {
		h.sinkErrors.Add(1)
		log.Warn("motor sink failed", "error", err)
	}
}

func (h *Hub) feedWatchdog() {
	if h.watchdog != nil {
		h.watchdog.Feed()
	}
}

// Session returns the session for vehicleID, or nil.
func (h *Hub) Session(vehicleID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[vehicleID]
}

// Sessions returns all connected sessions.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// VehicleCount returns the number of connected vehicles
func (h *Hub) VehicleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Stats contains hub statistics
type Stats struct {
	VehicleCount     int    `json:"vehicle_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	PosesReceived    uint64 `json:"poses_received"`
	InvalidInputs    uint64 `json:"invalid_inputs"`
	PathsSet         uint64 `json:"paths_set"`
	PathsRejected    uint64 `json:"paths_rejected"`
	GoalsReached     uint64 `json:"goals_reached"`
	TargetsFound     uint64 `json:"targets_found"`
	SinkErrors       uint64 `json:"sink_errors"`

	Watchdog *robot.WatchdogStats `json:"watchdog,omitempty"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	stats := Stats{
		VehicleCount:     h.VehicleCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		PosesReceived:    h.posesReceived.Load(),
		InvalidInputs:    h.invalidInputs.Load(),
		PathsSet:         h.pathsSet.Load(),
		PathsRejected:    h.pathsRejected.Load(),
		GoalsReached:     h.goalsReached.Load(),
		TargetsFound:     h.targetsFound.Load(),
		SinkErrors:       h.sinkErrors.Load(),
	}
	if h.watchdog != nil {
		ws := h.watchdog.Stats()
		stats.Watchdog = &ws
	}
	return stats
}

// VehicleInfo describes a connected vehicle.
type VehicleInfo struct {
	ID        string             `json:"id"`
	Connected time.Time          `json:"connected"`
	LastSeen  time.Time          `json:"last_seen"`
	State     pathtracker.State  `json:"state"`
	Tracker   protocol.StateData `json:"tracker"`
}

// GetVehicleInfos returns info about all connected vehicles
func (h *Hub) GetVehicleInfos() []VehicleInfo {
	sessions := h.Sessions()
	infos := make([]VehicleInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Info returns the session's VehicleInfo.
func (s *Session) Info() VehicleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	return VehicleInfo{
		ID:        s.ID,
		Connected: s.Connected,
		LastSeen:  s.lastSeen,
		State:     snap.State,
		Tracker:   snap,
	}
}
