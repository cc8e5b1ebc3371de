package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedFrame is returned when an inbound frame is not a JSON object of
// the expected shape.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded inbound frame. Exactly one of Ping or Message is set.
type Frame struct {
	Ping    bool
	Message *ChatMessage
}

type inboundFrame struct {
	Type string `json:"type"`
	ChatMessage
}

// Decode parses a raw inbound frame. Ping control frames are reported via
// Frame.Ping; everything else is treated as a chat message.
func Decode(raw []byte) (Frame, error) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if in.Type == ControlPing {
		return Frame{Ping: true}, nil
	}
	msg := in.ChatMessage
	return Frame{Message: &msg}, nil
}

// Encode wraps out in an Envelope stamped with now and serializes it.
func Encode(out Output, now time.Time) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		ID:     now.UnixMilli(),
		Author: SystemAuthor,
		Output: out,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", out.Event, err)
	}
	return data, nil
}

// Pong returns the serialized reply to a ping frame.
func Pong() []byte {
	data, _ := json.Marshal(ControlFrame{Type: ControlPong})
	return data
}
