package channel

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

const stopGracePeriod = 2 * time.Second

// endpoint couples a gRPC server with the listener it serves
type endpoint struct {
	name   string
	log    *log.Entry
	server *grpc.Server
	lis    net.Listener
}

func serve(name string, logger *log.Entry, srv handoffServer) (*endpoint, error) {
	lis, err := listen(name)
	if err != nil {
		return nil, err
	}

	e := &endpoint{
		name:   name,
		log:    logger,
		server: newServer(srv, logger),
		lis:    lis,
	}

	go func() {
		if err := e.server.Serve(lis); err != nil {
			e.log.Debugf("handoff endpoint %s stopped: %v", name, err)
		}
	}()
	return e, nil
}

// stop lets in-flight calls finish, forcing the shutdown after stopGracePeriod
func (e *endpoint) stop() {
	done := make(chan struct{})
	go func() {
		e.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		e.log.Warnf("forcing handoff endpoint %s to stop", e.name)
		e.server.Stop()
	}
}
