// Package panel implements the gRPC transport for the panel control interface.
//
// The service and its messages are declared in proto/panel.proto and carried
// as typed messages over a JSON codec. This package converts between domain
// types and those messages and exposes a server that calls into a provided
// business-service interface.
package panel
