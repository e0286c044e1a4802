package barrier

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const (
	waitSlice   = 250 // ms
	waitTimeout = 0x00000102
)

// MutexName returns the kernel object name backing the token for name
func MutexName(name string) string {
	return `Local\` + TokenName(name)
}

// namedMutex waits on a named kernel mutex. WAIT_ABANDONED is the expected outcome,
// the host terminates while owning it.
type namedMutex struct {
	log       *log.Entry
	handle    windows.Handle
	abandoned bool
}

func newBarrier(logger *log.Entry) Barrier {
	return &namedMutex{log: logger}
}

func (m *namedMutex) AcquireOrWait(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	namePtr, err := windows.UTF16PtrFromString(MutexName(name))
	if err != nil {
		return fmt.Errorf("invalid mutex name: %w", err)
	}

	h, err := windows.CreateMutex(nil, false, namePtr)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return fmt.Errorf("create mutex %s: %w", MutexName(name), err)
	}

	// mutex ownership belongs to the waiting thread
	runtime.LockOSThread()

	for {
		event, err := windows.WaitForSingleObject(h, waitSlice)
		switch event {
		case windows.WAIT_OBJECT_0:
			m.handle = h
			return nil
		case windows.WAIT_ABANDONED:
			m.log.Infof("mutex %s abandoned by its owner", MutexName(name))
			m.abandoned = true
			m.handle = h
			return nil
		case waitTimeout:
		default:
			runtime.UnlockOSThread()
			_ = windows.CloseHandle(h)
			return fmt.Errorf("wait for mutex %s: %w", MutexName(name), err)
		}

		select {
		case <-ctx.Done():
			runtime.UnlockOSThread()
			_ = windows.CloseHandle(h)
			return waitError(ctx, name)
		default:
		}
	}
}

func (m *namedMutex) Release() error {
	if m.handle == 0 {
		return nil
	}
	h := m.handle
	m.handle = 0
	defer runtime.UnlockOSThread()

	if err := windows.ReleaseMutex(h); err != nil {
		m.log.Debugf("failed to release mutex: %v", err)
	}
	return windows.CloseHandle(h)
}

func (m *namedMutex) Abandoned() bool {
	return m.abandoned
}

// Token is the host side of the barrier
type Token struct {
	handle windows.Handle
}

// Hold creates the named mutex owned by the calling thread. The host keeps it until it exits.
func Hold(name string) (*Token, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	namePtr, err := windows.UTF16PtrFromString(MutexName(name))
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name: %w", err)
	}

	runtime.LockOSThread()
	h, err := windows.CreateMutex(nil, true, namePtr)
	if err != nil {
		runtime.UnlockOSThread()
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		return nil, fmt.Errorf("token %s is already held: %w", TokenName(name), err)
	}
	return &Token{handle: h}, nil
}

// SetOwner is a no-op on windows, the kernel tracks the owning thread of the mutex
func (t *Token) SetOwner(int) error {
	return nil
}

// Release gives up the mutex
func (t *Token) Release() error {
	if t.handle == 0 {
		return nil
	}
	h := t.handle
	t.handle = 0
	defer runtime.UnlockOSThread()

	if err := windows.ReleaseMutex(h); err != nil {
		_ = windows.CloseHandle(h)
		return fmt.Errorf("release mutex: %w", err)
	}
	return windows.CloseHandle(h)
}
