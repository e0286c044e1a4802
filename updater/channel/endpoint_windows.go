package channel

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// Endpoint returns the named pipe path for the synchronization name
func Endpoint(name string) string {
	return `\\.\pipe\` + name
}

func listen(name string) (net.Listener, error) {
	return winio.ListenPipe(Endpoint(name), nil)
}

func dial(ctx context.Context, name string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, Endpoint(name))
}
