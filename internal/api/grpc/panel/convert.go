package panel

import (
	"errors"
	"fmt"

	pb "github.com/oshokin/alarm-panel/internal/api/grpc/panel/proto"
	"github.com/oshokin/alarm-panel/internal/board"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
)

var errInvalidState = errors.New("invalid state")

// EncodeCommand builds an Arm, Disarm or Panic request. A nil ignored list
// leaves the override unset so the panel applies its default.
func EncodeCommand(actor *domain.Actor, ignored []board.ID) *pb.CommandRequest {
	return &pb.CommandRequest{
		Actor:           EncodeActor(actor),
		IgnoredInputs:   encodePins(ignored),
		OverrideIgnored: ignored != nil,
	}
}

// DecodeCommand extracts the actor and the ignore list from a request. The
// ignore list is nil unless the request overrides it.
func DecodeCommand(req *pb.CommandRequest) (*domain.Actor, []board.ID, error) {
	if req == nil {
		return nil, nil, nil
	}

	actor := decodeActor(req.Actor)

	if !req.OverrideIgnored {
		return actor, nil, nil
	}

	ignored, err := decodePins(req.IgnoredInputs)
	if err != nil {
		return nil, nil, fmt.Errorf("ignored_inputs: %w", err)
	}

	if ignored == nil {
		ignored = []board.ID{}
	}

	return actor, ignored, nil
}

// EncodeStatus converts a status snapshot into its message.
func EncodeStatus(status *domain.Status) *pb.Status {
	if status == nil {
		status = new(domain.Status)
	}

	msg := &pb.Status{
		State:         status.State.String(),
		Since:         status.Since.UTC(),
		ActiveInputs:  encodePins(status.ActiveInputs),
		IgnoredInputs: encodePins(status.IgnoredInputs),
		LastActor:     EncodeActor(status.LastActor),
		Fault:         status.Fault,
	}

	for _, cause := range status.TriggerCauses {
		msg.TriggerCauses = append(msg.TriggerCauses, encodeCause(cause))
	}

	if status.LastTriggerCause != nil {
		msg.LastTriggerCause = encodeCause(*status.LastTriggerCause)
	}

	return msg
}

// DecodeStatus converts a status message into a snapshot.
func DecodeStatus(msg *pb.Status) (*domain.Status, error) {
	state, ok := domain.ParseState(msg.GetState())
	if !ok {
		return nil, fmt.Errorf("%w: %q", errInvalidState, msg.GetState())
	}

	status := &domain.Status{
		State:     state,
		Since:     msg.Since,
		Fault:     msg.Fault,
		LastActor: decodeActor(msg.LastActor),
	}

	var err error

	if status.ActiveInputs, err = decodePins(msg.ActiveInputs); err != nil {
		return nil, fmt.Errorf("active_inputs: %w", err)
	}

	if status.IgnoredInputs, err = decodePins(msg.IgnoredInputs); err != nil {
		return nil, fmt.Errorf("ignored_inputs: %w", err)
	}

	for _, item := range msg.TriggerCauses {
		cause, err := decodeCause(item)
		if err != nil {
			return nil, fmt.Errorf("trigger_causes: %w", err)
		}

		status.TriggerCauses = append(status.TriggerCauses, cause)
	}

	if msg.LastTriggerCause != nil {
		cause, err := decodeCause(msg.LastTriggerCause)
		if err != nil {
			return nil, fmt.Errorf("last_trigger_cause: %w", err)
		}

		status.LastTriggerCause = &cause
	}

	return status, nil
}

// DecodeResponse converts a command response into a snapshot and whether the
// command changed the state.
func DecodeResponse(resp *pb.CommandResponse) (*domain.Status, bool, error) {
	status, err := DecodeStatus(resp.GetStatus())
	if err != nil {
		return nil, false, err
	}

	return status, resp.GetChanged(), nil
}

// EncodeActor converts an actor into its message; nil stays nil.
func EncodeActor(actor *domain.Actor) *pb.Actor {
	if actor == nil {
		return nil
	}

	return &pb.Actor{Hostname: actor.Hostname, Username: actor.Username}
}

func decodeActor(msg *pb.Actor) *domain.Actor {
	if msg == nil {
		return nil
	}

	return &domain.Actor{Hostname: msg.Hostname, Username: msg.Username}
}

func encodeCause(cause domain.Cause) *pb.Cause {
	msg := &pb.Cause{Panic: cause.Panic, At: cause.At.UTC()}
	if !cause.Panic {
		msg.Input = int32(cause.Input)
	}

	return msg
}

func decodeCause(msg *pb.Cause) (domain.Cause, error) {
	if msg == nil {
		return domain.Cause{}, nil
	}

	cause := domain.Cause{Panic: msg.Panic, At: msg.At}

	if !cause.Panic {
		pin, err := decodePin(msg.Input)
		if err != nil {
			return domain.Cause{}, err
		}

		cause.Input = pin
	}

	return cause, nil
}

func encodePins(pins []board.ID) []int32 {
	if pins == nil {
		return nil
	}

	values := make([]int32, 0, len(pins))
	for _, pin := range pins {
		values = append(values, int32(pin))
	}

	return values
}

// decodePins returns nil for an empty list.
func decodePins(values []int32) ([]board.ID, error) {
	var pins []board.ID

	for _, value := range values {
		pin, err := decodePin(value)
		if err != nil {
			return nil, err
		}

		pins = append(pins, pin)
	}

	return pins, nil
}

func decodePin(value int32) (board.ID, error) {
	pin := board.ID(value)
	if err := board.ValidateInput(pin); err != nil {
		return 0, err
	}

	return pin, nil
}
