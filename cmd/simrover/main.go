// simrover: simulated differential-drive vehicle for the rover server.
// Streams poses over WebSocket, applies motor commands to a kinematic
// model and exits when the final waypoint is reached.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/pathtracker"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

var (
	server   = flag.String("server", "http://localhost:8080", "Rover server base URL")
	id       = flag.String("id", "sim-1", "Vehicle ID")
	rate     = flag.Int("rate", 20, "Pose rate (Hz)")
	demo     = flag.Bool("demo", true, "Post the demo path on connect")
	maxSpeed = flag.Float64("max-speed", 1.0, "Wheel speed at full scale (m/s)")
	track    = flag.Float64("track", 0.5, "Wheel separation (m)")
	startX   = flag.Float64("x", 0, "Initial X (m)")
	startY   = flag.Float64("y", 0, "Initial Y (m)")
	startYaw = flag.Float64("yaw", 0, "Initial yaw (rad)")
	timeout  = flag.Duration("timeout", 5*time.Minute, "Give up after this long")
)

func main() {
	flag.Parse()
	log.Init(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "simrover: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	wsURL, err := vehicleURL(*server, *id)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	log.Info("connected", "url", wsURL)

	path := DemoPath()
	if *demo {
		body := protocol.PathData{Waypoints: protocol.FromPath(path)}
		endpoint := strings.TrimRight(*server, "/") + "/api/vehicles/" + url.PathEscape(*id) + "/path"
		if err := httpc.PostJSON(ctx, nil, endpoint, body); err != nil {
			return fmt.Errorf("post demo path: %w", err)
		}
		log.Info("demo path posted", "waypoints", len(path))
	}

	vehicle := NewVehicle(*startX, *startY, *startYaw, *maxSpeed, *track, pathtracker.DefaultMaxMotorSpeed)
	done := make(chan error, 1)
	go readLoop(conn, vehicle, len(path)-1, done)

	dt := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case <-ticker.C:
			vehicle.Step(dt.Seconds())
			msg, err := protocol.NewPoseMessage(vehicle.Pose())
			if err != nil {
				return err
			}
			data, err := msg.Bytes()
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("send pose: %w", err)
			}
		}
	}
}

// readLoop applies motor commands and reports when the final goal is reached.
func readLoop(conn *websocket.Conn, vehicle *Vehicle, finalGoal int, done chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			done <- fmt.Errorf("read: %w", err)
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message from server", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeMotor:
			if m, err := msg.GetMotorData(); err == nil {
				vehicle.Command(m.Left, m.Right)
			}
		case protocol.TypePath:
			if p, err := msg.GetPathData(); err == nil {
				log.Info("heading for goal", "goal_index", p.GoalIndex)
			}
		case protocol.TypeReached:
			r, err := msg.GetReachedData()
			if err != nil {
				continue
			}
			pose := vehicle.Pose()
			log.Info("goal reached", "goal_index", r.GoalIndex, "x", pose.Position.X, "y", pose.Position.Y)
			if r.GoalIndex >= finalGoal {
				done <- nil
				return
			}
		case protocol.TypeError:
			var e protocol.ErrorData
			if err := msg.ParseData(&e); err == nil {
				log.Warn("server rejected input", "message", e.Message)
			}
		}
	}
}

// vehicleURL turns an http(s) base URL into the vehicle websocket URL.
func vehicleURL(base, vehicleID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/vehicle/" + url.PathEscape(vehicleID)
	return u.String(), nil
}
