// Package panel wires the alarm panel daemon: it loads the settings, opens
// the pin driver, the event journal and the state file, restores the arm
// intent and runs the poll loop, the arm schedule and the gRPC control server
// until the context is canceled. It also lists the event journal.
package panel
