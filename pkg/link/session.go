package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/journal"
	"github.com/teslashibe/go-rover/pkg/pathtracker"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

// journalTimeout bounds a single journal write.
const journalTimeout = 2 * time.Second

// writer is the part of a websocket connection a session writes to.
type writer interface {
	WriteMessage(messageType int, data []byte) error
}

// Session is one connected vehicle and its tracker. All tracker access is
// serialised by mu; outbound traffic produced while it is held is queued
// and flushed after it is released. writeMu is taken before mu and keeps
// socket and motor sink writes in the order they were queued.
type Session struct {
	ID        string
	Connected time.Time

	hub  *Hub
	conn writer

	writeMu sync.Mutex

	mu         sync.Mutex
	tracker    *pathtracker.Tracker
	route      pathtracker.Path // full path; the tracker holds route[base:]
	base       int
	pose       pathtracker.Pose
	hasPose    bool
	pending    pathtracker.Path
	hasPending bool
	lastSeen   time.Time
	lastCmd    *pathtracker.MotorCommand
	goalIndex  int // goal in flight during Update/Detect, for the callbacks
	outbox     []*protocol.Message
	drive      []pathtracker.MotorCommand
	events     []journal.Event
}

func newSession(h *Hub, id string, conn writer) (*Session, error) {
	s := &Session{
		ID:        id,
		Connected: time.Now(),
		hub:       h,
		conn:      conn,
		lastSeen:  time.Now(),
		goalIndex: -1,
	}
	t, err := pathtracker.New(h.cfg, s)
	if err != nil {
		return nil, err
	}
	s.tracker = t.WithLogger(log.With("vehicle", id))
	return s, nil
}

// NotifyReached implements pathtracker.Supervisor. It runs inside Update
// with mu held.
func (s *Session) NotifyReached(goal pathtracker.Waypoint) {
	s.hub.goalsReached.Add(1)
	if msg, err := protocol.NewReachedMessage(goal, s.goalIndex); err == nil {
		s.outbox = append(s.outbox, msg)
	}
	s.events = append(s.events, journal.Event{
		VehicleID: s.ID,
		Kind:      journal.KindGoalReached,
		GoalIndex: s.goalIndex,
		X:         goal.Position.X,
		Y:         goal.Position.Y,
		Z:         goal.Position.Z,
	})
}

// NotifyFound implements pathtracker.Supervisor. It runs inside Detect
// with mu held.
func (s *Session) NotifyFound(d pathtracker.Detection) {
	s.hub.targetsFound.Add(1)
	if msg, err := protocol.NewFoundMessage(d); err == nil {
		s.outbox = append(s.outbox, msg)
	}
	s.events = append(s.events, journal.Event{
		VehicleID: s.ID,
		Kind:      journal.KindFound,
		GoalIndex: s.goalIndex,
		X:         s.pose.Position.X,
		Y:         s.pose.Position.Y,
		Z:         s.pose.Position.Z,
		Detail:    fmt.Sprintf("confidence=%.2f bearing=%.3f distance=%.2f", d.Confidence, d.Bearing, d.Distance),
	})
}

// HandlePose feeds a pose to the tracker, applying any pending path first,
// and forwards the resulting motor command.
func (s *Session) HandlePose(pose pathtracker.Pose) error {
	if err := pose.Validate(); err != nil {
		s.hub.invalidInputs.Add(1)
		return err
	}

	s.mu.Lock()
	s.lastSeen = time.Now()
	s.pose = pose
	s.hasPose = true

	if s.hasPending {
		path := s.pending
		s.pending, s.hasPending = nil, false
		s.installLocked(path, 0, pose)
	}

	s.goalIndex = s.goalIndexLocked()
	step, err := s.tracker.Update(pose)
	if err == nil && step.Command != nil {
		s.commandLocked(*step.Command)
	}
	if err == nil && step.Reached {
		advanced := false
		// Continue from the reached waypoint unless it was the last one.
		if s.hub.autoAdvance && s.goalIndex >= 0 && s.goalIndex < len(s.route)-1 {
			_, aErr := s.installLocked(s.route, s.goalIndex, pose)
			advanced = aErr == nil
		}
		if !advanced && (step.Command == nil || !step.Command.IsZero()) {
			s.commandLocked(pathtracker.MotorCommand{})
		}
	}
	s.mu.Unlock()

	s.hub.posesReceived.Add(1)
	s.hub.feedWatchdog()
	s.flush()
	s.publish()
	return err
}

// HandleDetection passes a detection through the tracker's search gate.
func (s *Session) HandleDetection(d pathtracker.Detection) bool {
	s.mu.Lock()
	s.goalIndex = s.tracker.GoalIndex()
	fired := s.tracker.Detect(d)
	s.mu.Unlock()

	s.flush()
	return fired
}

// SetPath installs path on the tracker and returns the goal index. With no
// pose yet, the path is held and applied on the first pose; pending is true
// in that case.
func (s *Session) SetPath(path pathtracker.Path) (goalIndex int, pending bool, err error) {
	if len(path) == 0 {
		s.hub.pathsRejected.Add(1)
		s.record(journal.Event{VehicleID: s.ID, Kind: journal.KindPathRejected, GoalIndex: -1, Detail: pathtracker.ErrEmptyPath.Error()})
		return -1, false, pathtracker.ErrEmptyPath
	}
	for i, wp := range path {
		if vErr := wp.Validate(); vErr != nil {
			s.hub.pathsRejected.Add(1)
			s.record(journal.Event{VehicleID: s.ID, Kind: journal.KindPathRejected, GoalIndex: -1, Detail: vErr.Error()})
			return -1, false, fmt.Errorf("waypoint %d: %w", i, vErr)
		}
	}

	s.mu.Lock()
	if !s.hasPose {
		s.pending = append(pathtracker.Path(nil), path...)
		s.hasPending = true
		s.mu.Unlock()
		log.Info("path pending until first pose", "vehicle", s.ID, "waypoints", len(path))
		s.publish()
		return -1, true, nil
	}
	goalIndex, err = s.installLocked(append(pathtracker.Path(nil), path...), 0, s.pose)
	s.mu.Unlock()

	s.flush()
	s.publish()
	return goalIndex, false, err
}

// installLocked hands route[base:] to the tracker and queues the outcome.
// The returned goal index is relative to route.
func (s *Session) installLocked(route pathtracker.Path, base int, pose pathtracker.Pose) (int, error) {
	idx, err := s.tracker.SetPath(route[base:], pose)
	if err != nil {
		s.hub.pathsRejected.Add(1)
		log.Warn("path rejected", "vehicle", s.ID, "waypoints", len(route), "from", base, "error", err)
		s.events = append(s.events, journal.Event{
			VehicleID: s.ID,
			Kind:      journal.KindPathRejected,
			GoalIndex: -1,
			X:         pose.Position.X,
			Y:         pose.Position.Y,
			Z:         pose.Position.Z,
			Detail:    err.Error(),
		})
		if msg, mErr := protocol.NewErrorMessage(err); mErr == nil {
			s.outbox = append(s.outbox, msg)
		}
		return -1, err
	}

	s.route, s.base = route, base
	idx += base
	s.hub.pathsSet.Add(1)
	goal := route[idx]
	s.events = append(s.events, journal.Event{
		VehicleID: s.ID,
		Kind:      journal.KindPathSet,
		GoalIndex: idx,
		X:         goal.Position.X,
		Y:         goal.Position.Y,
		Z:         goal.Position.Z,
		Detail:    fmt.Sprintf("%d waypoints", len(route)),
	})
	if msg, mErr := protocol.NewPathMessage(route, idx); mErr == nil {
		s.outbox = append(s.outbox, msg)
	}
	return idx, nil
}

// CancelPath abandons the current path and any pending one, and tells the
// vehicle to stop.
func (s *Session) CancelPath() {
	s.mu.Lock()
	s.tracker.Detach()
	s.tracker.Attach()
	s.pending, s.hasPending = nil, false
	s.route, s.base = nil, 0
	s.commandLocked(pathtracker.MotorCommand{})
	s.mu.Unlock()

	log.Info("path cancelled", "vehicle", s.ID)
	s.flush()
	s.publish()
}

// commandLocked queues cmd for the vehicle and the local motor sink.
func (s *Session) commandLocked(cmd pathtracker.MotorCommand) {
	s.lastCmd = &cmd
	s.drive = append(s.drive, cmd)
	if msg, err := protocol.NewMotorMessage(cmd); err == nil {
		s.outbox = append(s.outbox, msg)
	}
}

// goalIndexLocked returns the active goal as an index into route, or -1.
func (s *Session) goalIndexLocked() int {
	if idx := s.tracker.GoalIndex(); idx >= 0 {
		return s.base + idx
	}
	return -1
}

// Snapshot returns the session's telemetry.
func (s *Session) Snapshot() protocol.StateData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() protocol.StateData {
	state := protocol.StateData{
		VehicleID: s.ID,
		State:     s.tracker.State(),
		GoalIndex: s.goalIndexLocked(),
		Pending:   s.hasPending,
	}
	if s.hasPose {
		p := protocol.FromWaypoint(s.pose)
		state.Pose = &p
	}
	if goal, ok := s.tracker.Goal(); ok {
		g := protocol.FromWaypoint(goal)
		state.Goal = &g
	}
	if s.lastCmd != nil {
		state.Command = &protocol.MotorData{Left: s.lastCmd.Left, Right: s.lastCmd.Right}
	}
	return state
}

// LastSeen returns when the vehicle last sent a pose.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// touch records inbound activity.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Send writes a message to the vehicle.
func (s *Session) Send(msg *protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.sendLocked(msg)
}

func (s *Session) sendLocked(msg *protocol.Message) error {
	if s.conn == nil {
		return errors.New("link: session has no connection")
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(textMessage, data); err != nil {
		return err
	}
	s.hub.messagesSent.Add(1)
	return nil
}

// flush sends queued messages and motor commands, then journal events.
// Queues are taken and written under writeMu, so a command queued after
// another is never written before it.
func (s *Session) flush() {
	s.writeMu.Lock()
	s.mu.Lock()
	outbox, drive, events := s.outbox, s.drive, s.events
	s.outbox, s.drive, s.events = nil, nil, nil
	s.mu.Unlock()

	for _, msg := range outbox {
		if err := s.sendLocked(msg); err != nil {
			log.Debug("send to vehicle failed", "vehicle", s.ID, "type", msg.Type, "error", err)
		}
	}
	for i := range drive {
		s.hub.driveSink(&drive[i])
	}
	s.writeMu.Unlock()

	for _, ev := range events {
		s.record(ev)
	}
}

func (s *Session) record(ev journal.Event) {
	if s.hub.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.hub.journal.Record(ctx, ev); err != nil {
		log.Error("journal write failed", "vehicle", s.ID, "kind", ev.Kind, "error", err)
	}
}

// publish sends a telemetry snapshot to dashboards.
func (s *Session) publish() {
	if s.hub.telemetry == nil {
		return
	}
	msg, err := protocol.NewStateMessage(s.Snapshot())
	if err != nil {
		return
	}
	if err := s.hub.telemetry.BroadcastJSON(s.ID, msg); err != nil {
		log.Debug("telemetry encode failed", "vehicle", s.ID, "error", err)
	}
}
