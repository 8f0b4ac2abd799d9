package protocol

import "github.com/teslashibe/go-rover/pkg/pathtracker"

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewPoseMessage creates a pose message carrying yaw
func NewPoseMessage(pose pathtracker.Pose) (*Message, error) {
	yaw := pose.Yaw
	return NewMessage(TypePose, PoseData{
		X:   pose.Position.X,
		Y:   pose.Position.Y,
		Z:   pose.Position.Z,
		Yaw: &yaw,
	})
}

// NewDetectionMessage creates a detection message
func NewDetectionMessage(confidence, bearing, distance float64) (*Message, error) {
	return NewMessage(TypeDetection, DetectionData{
		Confidence: confidence,
		Bearing:    bearing,
		Distance:   distance,
	})
}

// NewMotorMessage creates a motor command message
func NewMotorMessage(cmd pathtracker.MotorCommand) (*Message, error) {
	return NewMessage(TypeMotor, MotorData{Left: cmd.Left, Right: cmd.Right})
}

// NewPathMessage creates a path message
func NewPathMessage(path pathtracker.Path, goalIndex int) (*Message, error) {
	return NewMessage(TypePath, PathData{
		Waypoints: FromPath(path),
		GoalIndex: goalIndex,
	})
}

// NewReachedMessage creates a goal-reached message
func NewReachedMessage(goal pathtracker.Waypoint, goalIndex int) (*Message, error) {
	return NewMessage(TypeReached, ReachedData{
		Goal:      FromWaypoint(goal),
		GoalIndex: goalIndex,
	})
}

// NewFoundMessage creates a found message
func NewFoundMessage(d pathtracker.Detection) (*Message, error) {
	return NewMessage(TypeFound, FoundData{
		Confidence: d.Confidence,
		Bearing:    d.Bearing,
		Distance:   d.Distance,
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// NewStateMessage creates a telemetry message
func NewStateMessage(state StateData) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: ts})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetPoseData extracts pose data from a message
func (m *Message) GetPoseData() (*PoseData, error) {
	var data PoseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDetectionData extracts detection data from a message
func (m *Message) GetDetectionData() (*DetectionData, error) {
	var data DetectionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMotorData extracts a motor command from a message
func (m *Message) GetMotorData() (*MotorData, error) {
	var data MotorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPathData extracts path data from a message
func (m *Message) GetPathData() (*PathData, error) {
	var data PathData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetReachedData extracts reached data from a message
func (m *Message) GetReachedData() (*ReachedData, error) {
	var data ReachedData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
