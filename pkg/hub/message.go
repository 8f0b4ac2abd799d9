// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

// Message is one pre-encoded JSON frame. VehicleID tags the vehicle it
// concerns; empty means every subscriber receives it.
type Message struct {
	VehicleID string
	Data      []byte
}

// NewMessage creates a message for vehicleID from pre-encoded JSON.
func NewMessage(vehicleID string, data []byte) Message {
	return Message{VehicleID: vehicleID, Data: data}
}

// matches reports whether a subscriber filtering on vehicle should get m.
func (m Message) matches(vehicle string) bool {
	return vehicle == "" || m.VehicleID == "" || m.VehicleID == vehicle
}
