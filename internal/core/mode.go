// Package core is the orchestration layer.  It composes transports
// and capabilities into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	cipher, protocol, registry  →  transport  →  capability  →  session  →  core  →  cmd
package core

import "context"

// Mode is a complete operational mode of railrelay: the relay server
// (listen) or the interactive client (connect).  Each mode owns its
// lifecycle from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
