// Package handlers contains the business workflows behind each frame
// type: chat, assess and report. Handlers talk back to the caller only
// through the registry's send helpers.
package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChatPayload is the decoded chat frame. Recipient aliases and the
// topic alias mirror what clients actually send; unknown extra fields
// are ignored to stay forward-compatible.
type ChatPayload struct {
	Text      string `json:"text"`
	Topic     string `json:"topic"`
	TopicName string `json:"topic_name"`
	RoomID    string `json:"room_id"`
	Room      string `json:"room"`
	To        any    `json:"to"`
	Receiver  any    `json:"receiver"`
	Recipient any    `json:"recipient"`
}

// AssessPayload triggers the staged compatibility workflow.
type AssessPayload struct {
	PartnerID any    `json:"partner_id" validate:"required"`
	Topic     string `json:"topic"`
}

// ReportPayload requests the view-or-create report workflow.
type ReportPayload struct {
	PartnerID any `json:"partner_id"`
	Partner   any `json:"partner"`
	To        any `json:"to"`
}

// asID coerces a JSON value (string or number) into an identity string.
// Returns "" for anything unusable.
func asID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// firstID returns the first usable identity among the given aliases.
func firstID(values ...any) string {
	for _, v := range values {
		if id := asID(v); id != "" {
			return id
		}
	}
	return ""
}

// metaString reads a string field off the optional meta object.
func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	return asID(meta[key])
}
