// Package state persists the arm intent of the panel.
//
// The FileRepository stores and loads the intent as protobuf JSON on disk and
// exposes a Repository interface that the panel service depends on.
package state
