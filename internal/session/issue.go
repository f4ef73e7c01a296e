package session

import (
	"bufio"
	"context"
	"errors"

	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// Issue encodes cmd, sends it, decodes the response, and classifies the
// result into the pure Outcome union. It never returns a Go error for
// expected protocol conditions (timeout, malformed response, closed
// pipe) — those are represented as Outcome values so the scheduler can
// apply the replay matrix uniformly.
func (s *Session) Issue(ctx context.Context, cmd protocol.Command, wantVersion string) protocol.Outcome {
	line, err := protocol.EncodeLine(cmd)
	if err != nil {
		return protocol.Outcome{Kind: protocol.OutcomeFatalError, Message: err.Error()}
	}

	raw, err := s.Send(ctx, line)
	if err != nil {
		switch err.(type) {
		case *TimeoutError:
			return protocol.Outcome{Kind: protocol.OutcomeTimeout}
		case *ClosedError:
			return protocol.Outcome{Kind: protocol.OutcomeProtocolClosed}
		default:
			if errors.Is(err, bufio.ErrTooLong) {
				return protocol.Outcome{Kind: protocol.OutcomeProtocolInvalid, Message: "protocol: invalid: line_too_long"}
			}
			return protocol.Outcome{Kind: protocol.OutcomeFatalError, Message: err.Error()}
		}
	}

	resp, err := protocol.DecodeLine(raw)
	if err != nil {
		return protocol.Outcome{Kind: protocol.OutcomeProtocolInvalid, Message: err.Error()}
	}

	if err := protocol.ExpectVersion(resp, wantVersion); err != nil {
		return protocol.Outcome{Kind: protocol.OutcomeVersionMismatch, Message: err.Error(), Response: resp}
	}

	if resp.Error != nil {
		if resp.Fatal {
			return protocol.Outcome{Kind: protocol.OutcomeFatalError, Message: *resp.Error, Response: resp}
		}
		if resp.Retryable {
			return protocol.Outcome{Kind: protocol.OutcomeRetryableError, Message: *resp.Error, Response: resp}
		}
		return protocol.Outcome{Kind: protocol.OutcomeFatalError, Message: *resp.Error, Response: resp}
	}

	return protocol.Outcome{Kind: protocol.OutcomeOk, Response: resp}
}
