package channel

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	gstatus "google.golang.org/grpc/status"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

// SubmitPlan pushes p to the updater listening on name. It keeps retrying while the
// endpoint does not exist yet.
func SubmitPlan(ctx context.Context, name string, p *plan.Plan) error {
	raw, err := plan.Encode(p)
	if err != nil {
		return err
	}

	req := &SubmitPlanRequest{Sender: peerName(), Plan: raw}
	if err := invoke(ctx, name, submitMethod, req, &SubmitPlanResponse{}); err != nil {
		return status.Wrap(status.Transport, err, "submit plan to %s", Endpoint(name))
	}
	return nil
}

// FetchPlan pulls the plan served on name, used by a relaunched application
func FetchPlan(ctx context.Context, name string) (*plan.Plan, error) {
	resp := &FetchPlanResponse{}
	if err := invoke(ctx, name, fetchMethod, &FetchPlanRequest{Requester: peerName()}, resp); err != nil {
		return nil, status.Wrap(status.Transport, err, "fetch plan from %s", Endpoint(name))
	}
	return plan.Decode(resp.Plan)
}

func invoke(ctx context.Context, name, method string, req, reply any) error {
	conn, err := grpc.NewClient(
		"passthrough:///"+name,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return dial(ctx, name)
		}),
	)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	operation := func() error {
		err := conn.Invoke(ctx, method, req, reply, grpc.CallContentSubtype(codecName))
		if err == nil {
			return nil
		}
		if gstatus.Code(err) == codes.Unavailable {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, dialBackoff(ctx))
}

func dialBackoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, ctx)
}

func peerName() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "unknown"
	}
	return exe + ":" + strconv.Itoa(os.Getpid())
}
