package web

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status           string  `json:"status"`
	Version          string  `json:"version,omitempty"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Vehicles         int     `json:"vehicles"`
	TelemetryClients int     `json:"telemetry_clients"`
}

// handleHealth reports liveness and connection counts
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:           "ok",
		Version:          s.version,
		UptimeSeconds:    time.Since(s.started).Seconds(),
		Vehicles:         s.vehicles.VehicleCount(),
		TelemetryClients: s.telemetry.ClientCount(),
	})
}

// handleConfig returns the tracker configuration in use
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.tracker)
}

// handleMetrics exposes hub counters in Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	stats := s.vehicles.GetStats()
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(fmt.Sprintf(`# HELP rover_vehicles Connected vehicle count
# TYPE rover_vehicles gauge
rover_vehicles %d

# HELP rover_telemetry_clients Connected telemetry dashboards
# TYPE rover_telemetry_clients gauge
rover_telemetry_clients %d

# HELP rover_poses_received Total pose samples processed
# TYPE rover_poses_received counter
rover_poses_received %d

# HELP rover_paths_set Total paths installed
# TYPE rover_paths_set counter
rover_paths_set %d

# HELP rover_paths_rejected Total paths rejected
# TYPE rover_paths_rejected counter
rover_paths_rejected %d

# HELP rover_goals_reached Total goals completed
# TYPE rover_goals_reached counter
rover_goals_reached %d

# HELP rover_targets_found Total detections accepted
# TYPE rover_targets_found counter
rover_targets_found %d
`, stats.VehicleCount, s.telemetry.ClientCount(), stats.PosesReceived, stats.PathsSet,
		stats.PathsRejected, stats.GoalsReached, stats.TargetsFound))
}
