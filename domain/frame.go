package domain

import "encoding/json"

// Frame is the inbound wire envelope. Unknown payload fields are kept
// as raw JSON so each handler decodes its own typed payload; extra
// fields sent by newer clients are ignored.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Meta      map[string]any  `json:"meta,omitempty"`
}

// Outbound is the shape of every frame sent back to a client.
type Outbound struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// Frame type names shared between the dispatcher and the handlers.
const (
	TypeAck    = "ack"
	TypeError  = "error"
	TypeChat   = "chat"
	TypeAssess = "assess"
	TypeReport = "report"
)

// ErrorFrame reports a protocol or workflow error without closing the
// connection.
func ErrorFrame(requestID, message string) Outbound {
	return Outbound{
		Type:      TypeError,
		RequestID: requestID,
		Payload:   map[string]any{"message": message},
	}
}

// AckFrame acknowledges receipt with a status and timestamp.
func AckFrame(requestID, status string) Outbound {
	return Outbound{
		Type:      TypeAck,
		RequestID: requestID,
		Payload:   map[string]any{"status": status, "ts": Now()},
	}
}

// StageFrame is a non-terminal progress notification for a multi-step
// workflow, addressed to the originating frame type.
func StageFrame(frameType, requestID, stage string, extra map[string]any) Outbound {
	payload := map[string]any{"stage": stage, "ts": Now()}
	for k, v := range extra {
		payload[k] = v
	}
	return Outbound{Type: frameType, RequestID: requestID, Payload: payload}
}

// ResultFrame is the terminal notification of a workflow.
func ResultFrame(frameType, requestID string, result map[string]any) Outbound {
	return Outbound{
		Type:      frameType,
		RequestID: requestID,
		Payload:   map[string]any{"status": "done", "result": result, "ts": Now()},
	}
}
