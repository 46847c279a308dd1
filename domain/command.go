package domain

// Action tags an inbound frame dispatched by the transport layer.
type Action string

const (
	ActionConnect        Action = "connect"
	ActionDisconnect     Action = "disconnect"
	ActionGetClients     Action = "getClients"
	ActionSendMessage    Action = "sendMessage"
	ActionGetMessages    Action = "getMessages"
	ActionSearchMessages Action = "searchMessages"
)

// Status is the terminal response code returned to the transport layer
// for one invocation.
type Status int

const (
	StatusOK         Status = 200
	StatusBadRequest Status = 400
	StatusForbidden  Status = 403
	StatusInternal   Status = 500
)

// Inbound is one event handed over by the transport layer. ConnectionID
// is assigned by the transport, Nickname only carries the connect query
// parameter, and Body holds the raw frame for body-carrying actions.
type Inbound struct {
	ConnectionID string
	Action       Action
	Nickname     string
	Body         []byte
}

// SendMessageRequest is the sendMessage body.
type SendMessageRequest struct {
	ReceiverNickname string `json:"receiverNickname" validate:"required,nickname"`
	Message          string `json:"message" validate:"required,max=2000"`
}

// GetMessagesRequest is the getMessages body. PagingToken is an opaque
// cursor handed back by a previous page; the relay never interprets it.
type GetMessagesRequest struct {
	TargetNickname string  `json:"targetNickname" validate:"required,nickname"`
	Limit          int     `json:"limit" validate:"required,gt=0,lte=100"`
	PagingToken    *string `json:"pagingToken,omitempty"`
}

// SearchMessagesRequest is the searchMessages body.
type SearchMessagesRequest struct {
	TargetNickname string `json:"targetNickname" validate:"required,nickname"`
	Query          string `json:"query" validate:"required,max=200"`
	Limit          int    `json:"limit" validate:"required,gt=0,lte=100"`
}
