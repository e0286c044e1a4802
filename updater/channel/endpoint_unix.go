//go:build !windows

package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Endpoint returns the unix socket path for the synchronization name
func Endpoint(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

func listen(name string) (net.Listener, error) {
	path := Endpoint(name)
	// a socket left behind by a crashed run would make bind fail
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = lis.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return lis, nil
}

func dial(ctx context.Context, name string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", Endpoint(name))
}
