package pathtracker

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-rover/internal/log"
)

// Tracker follows a Path one goal at a time.
//
// Aiming always precedes Moving, Moving always precedes Finetuning, and only
// Finetuning clears the goal. A new SetPath abandons whatever goal is in flight.
type Tracker struct {
	cfg    Config
	sup    Supervisor
	logger *slog.Logger

	state     State
	path      Path
	goal      Waypoint
	goalIndex int // -1 when there is no goal
	current   Pose
	hasPose   bool
	detached  bool
}

// New creates an idle, attached tracker. sup may be nil.
func New(cfg Config, sup Supervisor) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sup == nil {
		sup = SupervisorFuncs{}
	}
	return &Tracker{
		cfg:       cfg,
		sup:       sup,
		logger:    log.L(),
		goalIndex: -1,
	}, nil
}

// WithLogger replaces the tracker's logger.
func (t *Tracker) WithLogger(l *slog.Logger) *Tracker {
	if l != nil {
		t.logger = l
	}
	return t
}

// Attach resets the tracker to a clean idle state and resumes processing.
func (t *Tracker) Attach() {
	t.detached = false
	t.path = nil
	t.hasPose = false
	t.clearGoal()
	t.setState(StateIdle)
}

// Detach stops pose processing. Update and SetPath return ErrDetached until
// Attach is called again.
func (t *Tracker) Detach() {
	t.detached = true
	t.clearGoal()
	t.setState(StateIdle)
}

// Detached reports whether the tracker is detached.
func (t *Tracker) Detached() bool {
	return t.detached
}

// SetPath installs path and selects the waypoint after the one nearest to
// current as the goal. It returns the goal index.
//
// An empty path yields ErrEmptyPath and a path whose nearest waypoint is the
// last one yields ErrPathExhausted; in both cases the tracker is left idle
// with no goal.
func (t *Tracker) SetPath(path Path, current Pose) (int, error) {
	if t.detached {
		return -1, ErrDetached
	}
	if err := current.Validate(); err != nil {
		return -1, err
	}
	for i, wp := range path {
		if err := wp.Validate(); err != nil {
			return -1, fmt.Errorf("waypoint %d: %w", i, err)
		}
	}

	t.path = append(Path(nil), path...)
	t.current = current
	t.hasPose = true

	if len(t.path) == 0 {
		t.clearGoal()
		t.setState(StateIdle)
		return -1, ErrEmptyPath
	}

	nearest := Nearest(t.path, current)
	if nearest == len(t.path)-1 {
		t.clearGoal()
		t.setState(StateIdle)
		return -1, fmt.Errorf("%w: nearest waypoint %d is the last of %d", ErrPathExhausted, nearest, len(t.path))
	}

	t.goalIndex = nearest + 1
	t.goal = t.path[t.goalIndex]
	t.logger.Debug("goal selected",
		"nearest", nearest,
		"goal_index", t.goalIndex,
		"goal_x", t.goal.Position.X,
		"goal_y", t.goal.Position.Y)
	t.setState(StateAiming)
	return t.goalIndex, nil
}

// Update advances the state machine with a new pose sample.
//
// Poses received while idle are recorded but produce nothing. Invalid poses
// are rejected with ErrInvalidPose and leave the state untouched.
func (t *Tracker) Update(pose Pose) (Step, error) {
	if t.detached {
		return Step{State: t.state}, ErrDetached
	}
	if err := pose.Validate(); err != nil {
		return Step{State: t.state}, err
	}
	t.current = pose
	t.hasPose = true

	switch t.state {
	case StateIdle:
		return Step{State: StateIdle}, nil

	case StateAiming:
		reached, cmd := t.TurnTo(HeadingTo(pose, t.goal), pose)
		if reached {
			t.setState(StateMoving)
			return Step{State: StateMoving}, nil
		}
		return Step{State: StateAiming, Command: &cmd}, nil

	case StateMoving:
		// The bearing is recomputed every cycle since drift changes it.
		headingOK, turn := t.TurnTo(HeadingTo(pose, t.goal), pose)
		if !headingOK {
			return Step{State: StateMoving, Command: &turn}, nil
		}
		reached, drive := t.Drive(pose, t.goal)
		if reached {
			t.setState(StateFinetuning)
			return Step{State: StateFinetuning}, nil
		}
		return Step{State: StateMoving, Command: &drive}, nil

	case StateFinetuning:
		reached, cmd := t.TurnTo(t.goal.Yaw, pose)
		if !reached {
			return Step{State: StateFinetuning, Command: &cmd}, nil
		}
		goal := t.goal
		t.clearGoal()
		t.setState(StateIdle)

		step := Step{State: StateIdle, Reached: true}
		if t.cfg.EmitOnFinetuneReached {
			step.Command = &cmd
		}
		t.logger.Info("goal reached", "x", goal.Position.X, "y", goal.Position.Y, "yaw", goal.Yaw)
		t.sup.NotifyReached(goal)
		return step, nil

	default:
		return Step{State: t.state}, fmt.Errorf("pathtracker: unknown state %v", t.state)
	}
}

// Detect forwards a detection to the supervisor when its confidence reaches
// the configured threshold. It reports whether NotifyFound fired.
func (t *Tracker) Detect(d Detection) bool {
	if t.detached || !(d.Confidence >= t.cfg.ConfidenceThreshold) {
		return false
	}
	t.logger.Info("target found", "confidence", d.Confidence, "bearing", d.Bearing, "distance", d.Distance)
	t.sup.NotifyFound(d)
	return true
}

// State returns the current phase.
func (t *Tracker) State() State {
	return t.state
}

// Goal returns the active goal, if any.
func (t *Tracker) Goal() (Waypoint, bool) {
	return t.goal, t.goalIndex >= 0
}

// GoalIndex returns the index of the active goal in the path, or -1.
func (t *Tracker) GoalIndex() int {
	return t.goalIndex
}

// Path returns a copy of the installed path.
func (t *Tracker) Path() Path {
	return append(Path(nil), t.path...)
}

// LastPose returns the most recent valid pose.
func (t *Tracker) LastPose() (Pose, bool) {
	return t.current, t.hasPose
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

func (t *Tracker) clearGoal() {
	t.goal = Waypoint{}
	t.goalIndex = -1
}

func (t *Tracker) setState(s State) {
	if t.state == s {
		return
	}
	t.logger.Info("tracker state", "from", t.state.String(), "to", s.String())
	t.state = s
}
