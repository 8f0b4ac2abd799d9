package main

import (
	"math"
	"sync"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

// Vehicle integrates unicycle kinematics from differential motor commands.
// A motor magnitude of fullScale maps to MaxSpeed (m/s) per side.
type Vehicle struct {
	MaxSpeed float64 // m/s at full scale
	Track    float64 // wheel separation, m

	mu        sync.Mutex
	x, y, yaw float64
	left      float64
	right     float64
	fullScale float64
}

// NewVehicle places a vehicle at (x, y) facing yaw.
func NewVehicle(x, y, yaw, maxSpeed, track, fullScale float64) *Vehicle {
	return &Vehicle{
		MaxSpeed:  maxSpeed,
		Track:     track,
		x:         x,
		y:         y,
		yaw:       yaw,
		fullScale: fullScale,
	}
}

// Command sets the active motor command.
func (v *Vehicle) Command(left, right float64) {
	v.mu.Lock()
	v.left, v.right = left, right
	v.mu.Unlock()
}

// Step advances the vehicle by dt seconds.
func (v *Vehicle) Step(dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	vl := v.left / v.fullScale * v.MaxSpeed
	vr := v.right / v.fullScale * v.MaxSpeed
	speed := (vl + vr) / 2
	omega := (vr - vl) / v.Track

	v.x += speed * math.Cos(v.yaw) * dt
	v.y += speed * math.Sin(v.yaw) * dt
	v.yaw = pathtracker.NormalizeAngle(v.yaw + omega*dt)
}

// Pose returns the current pose.
func (v *Vehicle) Pose() pathtracker.Pose {
	v.mu.Lock()
	defer v.mu.Unlock()
	return pathtracker.NewPose(v.x, v.y, v.yaw)
}

// DemoPath is an L-shaped course starting at the origin.
func DemoPath() pathtracker.Path {
	return pathtracker.Path{
		pathtracker.NewPose(0, 0, 0),
		pathtracker.NewPose(6, 0, 0),
		pathtracker.NewPose(12, 0, math.Pi/2),
		pathtracker.NewPose(12, 6, math.Pi/2),
	}
}
