// Package web serves the rover's HTTP API, vehicle links and telemetry
// stream from one Fiber app.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/link"
	"github.com/teslashibe/go-rover/pkg/pathtracker"
)

// Options configures a Server.
type Options struct {
	Addr      string
	Version   string
	Vehicles  *link.Hub
	Telemetry *hub.Hub
	Tracker   pathtracker.Config
	Debug     bool // log every request
}

// Server is the rover server
type Server struct {
	app     *fiber.App
	addr    string
	version string
	started time.Time

	vehicles  *link.Hub
	telemetry *hub.Hub
	tracker   pathtracker.Config

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires vehicles and telemetry into a Fiber app.
func NewServer(opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      opts.Addr,
		version:   opts.Version,
		started:   time.Now(),
		vehicles:  opts.Vehicles,
		telemetry: opts.Telemetry,
		tracker:   opts.Tracker,
		ctx:       ctx,
		cancel:    cancel,
	}
	vehicles, telemetry := opts.Vehicles, opts.Telemetry

	app := fiber.New(fiber.Config{
		AppName:               "go-rover",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/config", s.handleConfig)
	vehicles.RegisterAPIRoutes(api)

	// Vehicle links
	vehicles.RegisterRoutes(app)

	// Telemetry stream
	app.Use("/ws/telemetry", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", telemetry.Handler())

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the telemetry hub and serves until Shutdown.
func (s *Server) Start() error {
	log.Info("rover server listening", "addr", s.addr)

	go s.telemetry.Run(s.ctx)

	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server and the telemetry hub.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
