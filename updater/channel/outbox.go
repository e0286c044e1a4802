package channel

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	gstatus "google.golang.org/grpc/status"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

// Outbox holds a plan until a single peer fetches it
type Outbox struct {
	log       *log.Entry
	endpoint  *endpoint
	raw       []byte
	fetched   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Listen encodes p and starts serving it on the endpoint for name
func Listen(name string, p *plan.Plan, logger *log.Entry) (*Outbox, error) {
	if name == "" {
		return nil, status.Errorf(status.Configuration, "the synchronization process name must be specified")
	}

	raw, err := plan.Encode(p)
	if err != nil {
		return nil, err
	}

	out := &Outbox{
		log:  logger,
		raw:  raw,
		done: make(chan struct{}),
	}

	e, err := serve(name, logger, out)
	if err != nil {
		return nil, status.Wrap(status.Transport, err, "open channel %s", Endpoint(name))
	}
	out.endpoint = e
	return out, nil
}

func (o *Outbox) FetchPlan(_ context.Context, req *FetchPlanRequest) (*FetchPlanResponse, error) {
	if !o.fetched.CompareAndSwap(false, true) {
		return nil, gstatus.Error(codes.AlreadyExists, "the plan was already fetched")
	}
	o.log.Infof("plan handed to %q", req.Requester)
	close(o.done)
	return &FetchPlanResponse{Plan: o.raw}, nil
}

func (o *Outbox) SubmitPlan(context.Context, *SubmitPlanRequest) (*SubmitPlanResponse, error) {
	return nil, gstatus.Error(codes.Unimplemented, "this endpoint only hands out plans")
}

// Wait blocks until the plan was fetched or ctx is done, then closes the endpoint
func (o *Outbox) Wait(ctx context.Context) error {
	defer o.Close()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return status.Wrap(status.Relaunch, ctx.Err(), "relaunched application did not fetch the plan from %s", Endpoint(o.endpoint.name))
	}
}

// Close stops the endpoint. It is safe to call more than once.
func (o *Outbox) Close() {
	o.closeOnce.Do(o.endpoint.stop)
}
