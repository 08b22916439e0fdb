package service

import "encoding/json"

// Frame is the broker's multiplexed envelope. Responses carry the payload
// in either msg or data; request_id is present only on correlated replies.
type Frame struct {
	Name      string          `json:"name"`
	RequestID string          `json:"request_id,omitempty"`
	Msg       json.RawMessage `json:"msg,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Status    int             `json:"status,omitempty"`
}

// Payload returns msg when present, data otherwise.
func (f Frame) Payload() json.RawMessage {
	if len(f.Msg) > 0 {
		return f.Msg
	}
	return f.Data
}

// IsError reports whether the frame represents a rejected request.
// The broker signals failures either with a literal error frame or with
// a 4xxx status on the reply.
func (f Frame) IsError() bool {
	return f.Name == "error" || f.Status >= 4000
}

type rawFrame struct {
	Name      string      `json:"name"`
	Msg       interface{} `json:"msg"`
	RequestID string      `json:"request_id"`
}

type authFrame struct {
	Name      string `json:"name"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
}

type sendMessageFrame struct {
	Name      string          `json:"name"`
	Msg       sendMessageBody `json:"msg"`
	RequestID string          `json:"request_id"`
}

type sendMessageBody struct {
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Body      interface{} `json:"body"`
	RequestID string      `json:"request_id"`
}

type heartbeatFrame struct {
	Name string       `json:"name"`
	Msg  heartbeatMsg `json:"msg"`
}

type heartbeatMsg struct {
	HeartbeatTime int64 `json:"heartbeatTime"`
	UserTime      int64 `json:"userTime"`
}

// frame names with special handling in the read loop
const (
	frameSSID          = "ssid"
	frameProfile       = "profile"
	frameAuthenticated = "authenticated"
	frameTimeSync      = "timeSync"
	frameHeartbeat     = "heartbeat"
	frameSendMessage   = "sendMessage"
)
