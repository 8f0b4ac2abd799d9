package robot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/httpc"
)

// DefaultHTTPTimeout bounds a single motor POST.
const DefaultHTTPTimeout = 2 * time.Second

// HTTPDriver posts motor commands to a vehicle's onboard HTTP API.
type HTTPDriver struct {
	BaseURL string

	client *http.Client
	mu     sync.Mutex
	closed bool
}

// NewHTTPDriver creates a driver for the vehicle at baseURL
// (e.g. "http://rover.local:8000"). A bare host gets an http:// scheme.
func NewHTTPDriver(baseURL string) *HTTPDriver {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPDriver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.NewClient(DefaultHTTPTimeout),
	}
}

type motorPayload struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// SendMotor implements MotorSink.
func (d *HTTPDriver) SendMotor(left, right float64) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultHTTPTimeout)
	defer cancel()

	if err := httpc.PostJSON(ctx, d.client, d.BaseURL+"/api/motor", motorPayload{Left: left, Right: right}); err != nil {
		return fmt.Errorf("motor request failed: %w", err)
	}
	return nil
}

// Stop sends a zero command.
func (d *HTTPDriver) Stop() error {
	return d.SendMotor(0, 0)
}

// Close stops the motors and rejects further commands.
func (d *HTTPDriver) Close() error {
	err := d.Stop()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	if err == ErrClosed {
		return nil
	}
	return err
}
