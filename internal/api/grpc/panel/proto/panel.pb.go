// Package proto contains the message types of the alarmpanel.v1.PanelService
// described in panel.proto.
//
// The types are hand-written Go structs with JSON field names that follow the
// proto field names, carried by the JSON codec registered in panel_grpc.pb.go.
// This keeps protoc out of the build while the schema stays in panel.proto.
package proto

import "time"

// Empty is an empty message.
type Empty struct{}

// Actor identifies who issued a command.
type Actor struct {
	Hostname string `json:"hostname,omitempty"`
	Username string `json:"username,omitempty"`
}

// CommandRequest is the request of Arm, Disarm and Panic.
type CommandRequest struct {
	Actor         *Actor  `json:"actor,omitempty"`
	IgnoredInputs []int32 `json:"ignored_inputs,omitempty"`
	// OverrideIgnored selects IgnoredInputs, even when empty, over the default.
	OverrideIgnored bool `json:"override_ignored,omitempty"`
}

// Cause is one reason for a trigger: an input or a panic.
type Cause struct {
	Input int32     `json:"input,omitempty"`
	Panic bool      `json:"panic,omitempty"`
	At    time.Time `json:"at"`
}

// Status is a snapshot of the panel.
type Status struct {
	State            string    `json:"state"`
	Since            time.Time `json:"since"`
	ActiveInputs     []int32   `json:"active_inputs,omitempty"`
	IgnoredInputs    []int32   `json:"ignored_inputs,omitempty"`
	TriggerCauses    []*Cause  `json:"trigger_causes,omitempty"`
	LastTriggerCause *Cause    `json:"last_trigger_cause,omitempty"`
	LastActor        *Actor    `json:"last_actor,omitempty"`
	Fault            string    `json:"fault,omitempty"`
}

// CommandResponse is the response of Arm, Disarm and Panic.
type CommandResponse struct {
	Status  *Status `json:"status"`
	Changed bool    `json:"changed"`
}

// VirtualInputRequest is the request of SetVirtualInput.
type VirtualInputRequest struct {
	Closed bool `json:"closed"`
}

// OutputTestRequest is the request of TestOutput.
type OutputTestRequest struct {
	Actor  *Actor `json:"actor,omitempty"`
	Output string `json:"output"`
}

// OutputTestResponse is the response of TestOutput.
type OutputTestResponse struct {
	LengthMs int64 `json:"length_ms"`
}

// GetState returns the state name or "" for a nil status.
func (x *Status) GetState() string {
	if x == nil {
		return ""
	}

	return x.State
}

// GetStatus returns the status or nil for a nil response.
func (x *CommandResponse) GetStatus() *Status {
	if x == nil {
		return nil
	}

	return x.Status
}

// GetChanged reports whether the command changed the state.
func (x *CommandResponse) GetChanged() bool {
	return x != nil && x.Changed
}
