// ABOUTME: Gateway wire frames: opcodes, dispatch events, identify/resume payloads
// ABOUTME: JSON encoding mirrors the platform's real-time gateway protocol

package gateway

import (
	"encoding/json"
	"runtime"
)

// Opcode identifies a gateway frame type.
type Opcode int

const (
	// OpDispatch carries a named event with a sequence number.
	OpDispatch Opcode = 0
	// OpHeartbeat is sent on the heartbeat interval with the last sequence.
	OpHeartbeat Opcode = 1
	// OpIdentify opens a fresh session.
	OpIdentify Opcode = 2
	// OpPresence updates the bot's displayed status.
	OpPresence Opcode = 3
	// OpResume re-attaches to an existing session after a drop.
	OpResume Opcode = 6
	// OpReconnect is a server request to disconnect and resume.
	OpReconnect Opcode = 7
	// OpInvalidSession rejects a resume; a fresh identify is required.
	OpInvalidSession Opcode = 9
	// OpHello is the first server frame and carries the heartbeat interval.
	OpHello Opcode = 10
	// OpHeartbeatACK acknowledges a heartbeat.
	OpHeartbeatACK Opcode = 11
)

// Frame is one gateway message in either direction.
type Frame struct {
	Op       Opcode          `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence int64           `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

// Event is one decoded dispatch (op 0) event.
type Event struct {
	Shard    int
	Type     string
	Sequence int64
	Data     json.RawMessage
}

// MessageData is the payload of a MESSAGE_CREATE event, reduced to the
// fields the command router needs.
type MessageData struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
}

// EventMessageCreate is the dispatch type carrying chat text.
const EventMessageCreate = "MESSAGE_CREATE"

// Dispatch event types that affect session state.
const (
	eventReady   = "READY"
	eventResumed = "RESUMED"
)

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"` // milliseconds
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token          string             `json:"token"`
	Properties     identifyProperties `json:"properties"`
	Shard          [2]int             `json:"shard"`
	LargeThreshold int                `json:"large_threshold"`
	Compress       bool               `json:"compress"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

type readyData struct {
	SessionID string `json:"session_id"`
}

type presenceData struct {
	Status string `json:"status"`
	Game   struct {
		Name string `json:"name"`
	} `json:"game"`
}

// marshalFrame builds a frame with a JSON-encoded data payload.
func marshalFrame(op Opcode, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{Op: op, Data: raw}, nil
}

// identifyFrame builds the identify payload for a shard.
func identifyFrame(token, identity string, shardID, shardTotal int) (*Frame, error) {
	return marshalFrame(OpIdentify, identifyData{
		Token: token,
		Properties: identifyProperties{
			OS:      runtime.GOOS,
			Browser: identity,
			Device:  identity,
		},
		Shard:          [2]int{shardID, shardTotal},
		LargeThreshold: 50,
	})
}

// resumeFrame builds the resume payload for a dropped session.
func resumeFrame(token, sessionID string, sequence int64) (*Frame, error) {
	return marshalFrame(OpResume, resumeData{
		Token:     token,
		SessionID: sessionID,
		Sequence:  sequence,
	})
}

// heartbeatFrame builds a heartbeat carrying the last seen sequence.
func heartbeatFrame(sequence int64) *Frame {
	raw, _ := json.Marshal(sequence)
	return &Frame{Op: OpHeartbeat, Data: raw}
}

// presenceFrame builds a status update payload.
func presenceFrame(status string) (*Frame, error) {
	var d presenceData
	d.Status = "online"
	d.Game.Name = status
	return marshalFrame(OpPresence, d)
}
