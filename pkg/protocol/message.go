// Package protocol defines the WebSocket message types exchanged between the
// rover server, vehicles and dashboards.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Vehicle → Server messages
	TypePose      MessageType = "pose"      // Fused pose sample
	TypeDetection MessageType = "detection" // Search target sighting

	// Server → Vehicle messages
	TypeMotor   MessageType = "motor"   // Motor command
	TypePath    MessageType = "path"    // Path installed for the vehicle
	TypeReached MessageType = "reached" // Goal completed
	TypeFound   MessageType = "found"   // Detection accepted
	TypeError   MessageType = "error"   // Rejected input

	// Server → Dashboard messages
	TypeState MessageType = "state" // Tracker telemetry

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// ErrNoOrientation is returned when a pose carries neither yaw nor a quaternion.
var ErrNoOrientation = errors.New("protocol: pose has no orientation")

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Vehicle → Server Message Types
// =============================================================================

// quaternionTolerance is how far from 1 a quaternion's norm may drift.
const quaternionTolerance = 1e-2

// QuaternionData is a unit orientation quaternion.
type QuaternionData struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Validate rejects quaternions that are not unit length within tolerance.
func (q QuaternionData) Validate() error {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if math.IsNaN(n) || math.Abs(n-1) > quaternionTolerance {
		return fmt.Errorf("%w: quaternion norm %v", pathtracker.ErrInvalidPose, n)
	}
	return nil
}

// PoseData is a pose sample. Either Yaw or Orientation must be set; when both
// are present the quaternion wins.
type PoseData struct {
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Z           float64         `json:"z"`
	Yaw         *float64        `json:"yaw,omitempty"`
	Orientation *QuaternionData `json:"orientation,omitempty"`
}

// ToPose converts the sample into a validated tracker pose.
func (p PoseData) ToPose() (pathtracker.Pose, error) {
	var yaw float64
	switch {
	case p.Orientation != nil:
		q := p.Orientation
		if err := q.Validate(); err != nil {
			return pathtracker.Pose{}, err
		}
		yaw = pathtracker.YawFromQuaternion(q.W, q.X, q.Y, q.Z)
	case p.Yaw != nil:
		yaw = *p.Yaw
	default:
		return pathtracker.Pose{}, ErrNoOrientation
	}
	pose := pathtracker.Pose{Position: r3.Vector{X: p.X, Y: p.Y, Z: p.Z}, Yaw: yaw}
	if err := pose.Validate(); err != nil {
		return pathtracker.Pose{}, err
	}
	return pose, nil
}

// DetectionData is a search target sighting.
type DetectionData struct {
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	Bearing    float64 `json:"bearing"`    // Radians, vehicle-relative
	Distance   float64 `json:"distance"`   // Meters
}

// ToDetection converts to the tracker type.
func (d DetectionData) ToDetection() pathtracker.Detection {
	return pathtracker.Detection{Confidence: d.Confidence, Bearing: d.Bearing, Distance: d.Distance}
}

// =============================================================================
// Server → Vehicle Message Types
// =============================================================================

// MotorData contains a differential drive command
type MotorData struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// WaypointData is a waypoint on the wire.
type WaypointData struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z,omitempty"`
	Yaw float64 `json:"yaw"`
}

// FromWaypoint converts a tracker waypoint.
func FromWaypoint(wp pathtracker.Waypoint) WaypointData {
	return WaypointData{X: wp.Position.X, Y: wp.Position.Y, Z: wp.Position.Z, Yaw: wp.Yaw}
}

// ToWaypoint converts to a tracker waypoint.
func (w WaypointData) ToWaypoint() pathtracker.Waypoint {
	return pathtracker.Waypoint{Position: r3.Vector{X: w.X, Y: w.Y, Z: w.Z}, Yaw: w.Yaw}
}

// PathData is an ordered list of waypoints.
type PathData struct {
	Waypoints []WaypointData `json:"waypoints"`
	GoalIndex int            `json:"goal_index"`
}

// ToPath converts to a tracker path.
func (p PathData) ToPath() pathtracker.Path {
	path := make(pathtracker.Path, len(p.Waypoints))
	for i, w := range p.Waypoints {
		path[i] = w.ToWaypoint()
	}
	return path
}

// FromPath converts a tracker path.
func FromPath(path pathtracker.Path) []WaypointData {
	out := make([]WaypointData, len(path))
	for i, wp := range path {
		out[i] = FromWaypoint(wp)
	}
	return out
}

// ReachedData announces a completed goal.
type ReachedData struct {
	Goal      WaypointData `json:"goal"`
	GoalIndex int          `json:"goal_index"`
}

// FoundData echoes an accepted detection.
type FoundData struct {
	Confidence float64 `json:"confidence"`
	Bearing    float64 `json:"bearing"`
	Distance   float64 `json:"distance"`
}

// ErrorData reports input the server rejected.
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Server → Dashboard Message Types
// =============================================================================

// StateData is a telemetry snapshot of one vehicle's tracker.
type StateData struct {
	VehicleID string            `json:"vehicle_id"`
	State     pathtracker.State `json:"state"`
	Pose      *WaypointData     `json:"pose,omitempty"`
	Goal      *WaypointData     `json:"goal,omitempty"`
	GoalIndex int               `json:"goal_index"`
	Command   *MotorData        `json:"command,omitempty"`
	Pending   bool              `json:"pending_path,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
