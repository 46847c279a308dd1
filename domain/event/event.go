// Package event defines the outbound push payloads delivered to live
// connections. Every push is a tagged union envelope so clients can
// switch on a single type field.
package event

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeClients Type = "clients"
	TypeMessage Type = "message"
	TypePing    Type = "ping"
	TypeError   Type = "error"
	TypeHistory Type = "history"
	TypeMatches Type = "matches"
)

type Envelope struct {
	Type  Type `json:"type"`
	Value any  `json:"value,omitempty"`
}

// Client is one entry of a presence snapshot. ConnectionID is included
// for client-side bookkeeping only and is not stable across reconnects.
type Client struct {
	ConnectionID string `json:"connectionId"`
	Nickname     string `json:"nickname"`
}

type ClientsValue struct {
	Clients []Client `json:"clients"`
}

type MessageValue struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type ErrorValue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type HistoryMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type HistoryValue struct {
	Messages    []HistoryMessage `json:"messages"`
	PagingToken *string          `json:"pagingToken,omitempty"`
}

type MatchesValue struct {
	Messages []HistoryMessage `json:"messages"`
}

// Encode marshals one envelope to the wire representation.
func Encode(t Type, value any) ([]byte, error) {
	return json.Marshal(Envelope{Type: t, Value: value})
}

// Ping is the content-free liveness probe payload. It never varies, so
// it is computed once.
var Ping = []byte(`{"type":"ping"}`)
