package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var ErrMalformedMessage = errors.New("malformed message")

const maxEchoLen = 128

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads the "id" envelope and returns the matching typed message.
// Every failure wraps ErrMalformedMessage.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		ID Kind `json:"id"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.ID {
	case KindRegister:
		return decodeAs[Register](data)
	case KindCall:
		return decodeAs[Call](data)
	case KindIncomingCallResponse:
		return decodeAs[IncomingCallResponse](data)
	case KindStop:
		return Stop{}, nil
	case KindOnIceCandidate:
		return decodeAs[OnIceCandidate](data)
	case KindPing:
		return Ping{}, nil
	case KindStart:
		return decodeAs[Start](data)
	}
	return nil, fmt.Errorf("%w: unknown id %q", ErrMalformedMessage, env.ID)
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, m.Kind(), err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, m.Kind(), err)
	}
	return m, nil
}

func Encode(m Outbound) (core.Frame, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return b, nil
}

// InvalidMessage builds the error reply for a payload that could not be handled.
func InvalidMessage(data []byte) Error {
	s := string(data)
	if len(s) > maxEchoLen {
		n := maxEchoLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n] + "..."
	}
	return NewError("Invalid message " + s)
}
