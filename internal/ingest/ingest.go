// Package ingest defines the boundary interface between the outside world
// (a pub/sub bus, a FIX session, a replay tool) and the reconciliation
// core. spec.md treats the FIX parser and the messaging subscriber as
// external collaborators "specified only at their interface"; EventSource
// is that interface, concretely.
package ingest

import (
	"context"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

// EventSource produces normalized exec events onto out until ctx is
// canceled or an unrecoverable error occurs. Implementations own their
// own reconnect/retry policy; Run returning nil means ctx was canceled.
type EventSource interface {
	Run(ctx context.Context, out chan<- execevent.ExecEvent) error
}
