// Package client implements the alarm-ctl commands.
//
// Each command connects to the panel daemon, issues one control call and
// prints the resulting status. Arm and disarm can keep retrying while the
// daemon is unreachable. Watch polls the status until interrupted.
package client
