package channel

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	gstatus "google.golang.org/grpc/status"

	"github.com/netbirdio/netbird-updater/updater/plan"
	"github.com/netbirdio/netbird-updater/updater/status"
)

func testName() string {
	return "nbt-" + uuid.NewString()[:8]
}

func testLogger() *log.Entry {
	return log.NewEntry(log.StandardLogger())
}

func samplePlan() *plan.Plan {
	return &plan.Plan{
		AppPath:             "/opt/app/app",
		RelaunchApplication: true,
		Tasks: []*plan.TaskRecord{
			{Description: "first", ExecutionStatus: plan.RequiresAppRestart, Kind: "file-delete"},
			{Description: "second", ExecutionStatus: plan.Successful, Kind: "file-update"},
			{Description: "third", ExecutionStatus: plan.RequiresPrivilegedAppRestart, Kind: "file-update"},
		},
	}
}

func descriptions(p *plan.Plan) []string {
	out := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		out = append(out, t.Description)
	}
	return out
}

func TestInboxReceivesSubmittedPlan(t *testing.T) {
	name := testName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in, err := Open(name, testLogger())
	require.NoError(t, err)

	submitErr := make(chan error, 1)
	go func() {
		submitErr <- SubmitPlan(ctx, name, samplePlan())
	}()

	got, err := in.ReceivePlan(ctx)
	require.NoError(t, err)
	require.NoError(t, <-submitErr)

	assert.Equal(t, []string{"first", "second", "third"}, descriptions(got))
	assert.Equal(t, plan.RequiresPrivilegedAppRestart, got.Tasks[2].ExecutionStatus)
	assert.True(t, got.RelaunchApplication)
}

func TestSubmitRetriesUntilEndpointExists(t *testing.T) {
	name := testName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	submitErr := make(chan error, 1)
	go func() {
		submitErr <- SubmitPlan(ctx, name, samplePlan())
	}()

	time.Sleep(300 * time.Millisecond)
	in, err := Open(name, testLogger())
	require.NoError(t, err)

	got, err := in.ReceivePlan(ctx)
	require.NoError(t, err)
	require.NoError(t, <-submitErr)
	assert.Len(t, got.Tasks, 3)
}

func TestInboxAcceptsSinglePlan(t *testing.T) {
	name := testName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in, err := Open(name, testLogger())
	require.NoError(t, err)
	defer in.Close()

	require.NoError(t, SubmitPlan(ctx, name, samplePlan()))

	err = SubmitPlan(ctx, name, samplePlan())
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Transport))

	_, err = in.ReceivePlan(ctx)
	require.NoError(t, err)
}

func TestInboxRejectsMalformedPlan(t *testing.T) {
	name := testName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in, err := Open(name, testLogger())
	require.NoError(t, err)

	req := &SubmitPlanRequest{Sender: "test", Plan: json.RawMessage(`{"appPath":"/a","tasks":"not-a-list"}`)}
	require.NoError(t, invoke(ctx, name, submitMethod, req, &SubmitPlanResponse{}))

	_, err = in.ReceivePlan(ctx)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Transport))
}

func TestReceivePlanTimesOut(t *testing.T) {
	in, err := Open(testName(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = in.ReceivePlan(ctx)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Timeout), "expired wait must be a timeout, got %v", err)
	assert.False(t, status.Is(err, status.Transport))
}

func TestReceivePlanCancelled(t *testing.T) {
	in, err := Open(testName(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = in.ReceivePlan(ctx)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Transport))
}

func TestOpenRequiresName(t *testing.T) {
	_, err := Open("", testLogger())
	assert.True(t, status.Is(err, status.Configuration))

	_, err = Listen("", samplePlan(), testLogger())
	assert.True(t, status.Is(err, status.Configuration))
}

func TestSendPlanAndLaunch(t *testing.T) {
	name := testName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fetched := make(chan *plan.Plan, 1)
	fetchErr := make(chan error, 1)
	start := func() (*os.Process, error) {
		go func() {
			p, err := FetchPlan(ctx, name)
			fetchErr <- err
			fetched <- p
		}()
		return os.FindProcess(os.Getpid())
	}

	proc, out, err := SendPlanAndLaunch(samplePlan(), name, start, testLogger())
	require.NoError(t, err)
	require.NotNil(t, proc)
	assert.Equal(t, os.Getpid(), proc.Pid)

	require.NoError(t, out.Wait(ctx))
	require.NoError(t, <-fetchErr)
	assert.Equal(t, []string{"first", "second", "third"}, descriptions(<-fetched))
}

func TestSendPlanAndLaunchStartFailure(t *testing.T) {
	name := testName()
	start := func() (*os.Process, error) {
		return nil, errors.New("exec format error")
	}

	_, _, err := SendPlanAndLaunch(samplePlan(), name, start, testLogger())
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Relaunch))

	// the endpoint was released
	out, err := Listen(name, samplePlan(), testLogger())
	require.NoError(t, err)
	out.Close()
}

func TestOutboxWaitTimesOut(t *testing.T) {
	out, err := Listen(testName(), samplePlan(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = out.Wait(ctx)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.Relaunch))
}

type panickingServer struct {
	plan []byte
}

func (s *panickingServer) SubmitPlan(context.Context, *SubmitPlanRequest) (*SubmitPlanResponse, error) {
	panic("corrupt inbox state")
}

func (s *panickingServer) FetchPlan(context.Context, *FetchPlanRequest) (*FetchPlanResponse, error) {
	return &FetchPlanResponse{Plan: s.plan}, nil
}

func TestEndpointSurvivesPanickingHandler(t *testing.T) {
	name := testName()
	raw, err := plan.Encode(samplePlan())
	require.NoError(t, err)

	e, err := serve(name, testLogger(), &panickingServer{plan: raw})
	require.NoError(t, err)
	defer e.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = invoke(ctx, name, submitMethod, &SubmitPlanRequest{Sender: "test", Plan: raw}, &SubmitPlanResponse{})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, gstatus.Code(err))

	got, err := FetchPlan(ctx, name)
	require.NoError(t, err, "the endpoint keeps serving after a failed call")
	assert.Equal(t, []string{"first", "second", "third"}, descriptions(got))
}
