// Package barrier implements the termination barrier: a named, cross-process token held by
// the host application for its whole lifetime. Obtaining the token proves the host is gone.
package barrier

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/netbird-updater/updater/status"
)

const tokenSuffix = "Mutex"

// Barrier waits for exclusive ownership of a named token
type Barrier interface {
	// AcquireOrWait blocks until the token for name is owned by the caller. A token left
	// behind by a terminated owner counts as acquired.
	AcquireOrWait(ctx context.Context, name string) error
	// Release gives the token back. Process exit releases it as well.
	Release() error
	// Abandoned reports whether the token was taken over from a terminated owner
	Abandoned() bool
}

// New returns the barrier implementation of the current platform
func New(logger *log.Entry) Barrier {
	return newBarrier(logger)
}

// TokenName derives the system wide token name from the synchronization name
func TokenName(name string) string {
	return name + tokenSuffix
}

func checkName(name string) error {
	if name == "" {
		return status.Errorf(status.Configuration, "the synchronization process name must be specified")
	}
	return nil
}

func waitError(ctx context.Context, name string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return status.Wrap(status.Timeout, ctx.Err(), "timed out waiting for %q to terminate", name)
	}
	return status.Wrap(status.Timeout, ctx.Err(), "wait for %q to terminate aborted", name)
}
