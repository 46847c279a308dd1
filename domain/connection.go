// Package domain contains the core concepts of the relay.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

// Connection binds a live transport session to a nickname.
// Rows are never updated in place: a nickname change is a
// disconnect followed by a reconnect.
type Connection struct {
	ConnectionID string    `json:"connectionId"`
	Nickname     string    `json:"nickname"`
	ConnectedAt  time.Time `json:"connectedAt"`
}
