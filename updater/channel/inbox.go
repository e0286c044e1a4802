package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	gstatus "google.golang.org/grpc/status"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

// Inbox is the receiving end of the initial handoff. It accepts exactly one plan.
type Inbox struct {
	log       *log.Entry
	endpoint  *endpoint
	accepted  atomic.Bool
	received  chan []byte
	closeOnce sync.Once
}

// Open creates the endpoint for name so the host can push its plan before exiting
func Open(name string, logger *log.Entry) (*Inbox, error) {
	if name == "" {
		return nil, status.Errorf(status.Configuration, "the synchronization process name must be specified")
	}

	in := &Inbox{
		log:      logger,
		received: make(chan []byte, 1),
	}

	e, err := serve(name, logger, in)
	if err != nil {
		return nil, status.Wrap(status.Transport, err, "open channel %s", Endpoint(name))
	}
	in.endpoint = e
	logger.Debugf("waiting for the plan on %s", Endpoint(name))
	return in, nil
}

func (i *Inbox) SubmitPlan(_ context.Context, req *SubmitPlanRequest) (*SubmitPlanResponse, error) {
	if !i.accepted.CompareAndSwap(false, true) {
		return nil, gstatus.Error(codes.AlreadyExists, "a plan was already submitted")
	}
	i.log.Infof("received plan from %q (%d bytes)", req.Sender, len(req.Plan))
	i.received <- req.Plan
	return &SubmitPlanResponse{}, nil
}

func (i *Inbox) FetchPlan(context.Context, *FetchPlanRequest) (*FetchPlanResponse, error) {
	return nil, gstatus.Error(codes.Unimplemented, "this endpoint only accepts plans")
}

// ReceivePlan waits for the submitted plan, decodes it and closes the channel
func (i *Inbox) ReceivePlan(ctx context.Context) (*plan.Plan, error) {
	defer i.Close()

	select {
	case raw := <-i.received:
		return plan.Decode(raw)
	case <-ctx.Done():
		return nil, receiveError(ctx, i.endpoint.name)
	}
}

// receiveError classifies an interrupted wait. An expired deadline is a Timeout, any
// other cancellation means the channel was torn down.
func receiveError(ctx context.Context, name string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return status.Wrap(status.Timeout, ctx.Err(), "no plan received on %s in time", Endpoint(name))
	}
	return status.Wrap(status.Transport, ctx.Err(), "no plan received on %s", Endpoint(name))
}

// Close stops the endpoint. It is safe to call more than once.
func (i *Inbox) Close() {
	i.closeOnce.Do(i.endpoint.stop)
}
