package channel

import (
	"context"
	"encoding/json"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	gstatus "google.golang.org/grpc/status"
)

const (
	codecName    = "json"
	serviceName  = "updater.Handoff"
	submitMethod = "/" + serviceName + "/SubmitPlan"
	fetchMethod  = "/" + serviceName + "/FetchPlan"
)

// SubmitPlanRequest pushes an encoded plan to the endpoint owner
type SubmitPlanRequest struct {
	Sender string          `json:"sender"`
	Plan   json.RawMessage `json:"plan"`
}

type SubmitPlanResponse struct{}

// FetchPlanRequest pulls the plan held by the endpoint owner
type FetchPlanRequest struct {
	Requester string `json:"requester"`
}

type FetchPlanResponse struct {
	Plan json.RawMessage `json:"plan"`
}

type handoffServer interface {
	SubmitPlan(ctx context.Context, req *SubmitPlanRequest) (*SubmitPlanResponse, error)
	FetchPlan(ctx context.Context, req *FetchPlanRequest) (*FetchPlanResponse, error)
}

// jsonCodec carries the handoff messages without generated protobuf types
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

var handoffServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*handoffServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitPlan",
			Handler:    submitPlanHandler,
		},
		{
			MethodName: "FetchPlan",
			Handler:    fetchPlanHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "updater/handoff",
}

func submitPlanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitPlanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(handoffServer).SubmitPlan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: submitMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(handoffServer).SubmitPlan(ctx, req.(*SubmitPlanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchPlanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchPlanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(handoffServer).FetchPlan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: fetchMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(handoffServer).FetchPlan(ctx, req.(*FetchPlanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// newServer builds the handoff server. Completed calls are logged at debug level and a
// panicking handler fails only its own call.
func newServer(srv handoffServer, logger *log.Entry) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(
				interceptorLogger(logger),
				logging.WithLogOnEvents(logging.FinishCall),
				logging.WithLevels(callLevel),
			),
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(func(p any) error {
				logger.Errorf("handoff call panicked: %v", p)
				return gstatus.Error(codes.Internal, "handoff call failed")
			})),
		),
	)
	s.RegisterService(&handoffServiceDesc, srv)
	return s
}

func callLevel(code codes.Code) logging.Level {
	if code == codes.OK {
		return logging.LevelDebug
	}
	return logging.DefaultServerCodeToLevel(code)
}

// interceptorLogger adapts logger to the interceptor logging interface
func interceptorLogger(logger *log.Entry) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make(log.Fields, len(fields)/2)
		i := logging.Fields(fields).Iterator()
		for i.Next() {
			k, v := i.At()
			f[k] = v
		}
		entry := logger.WithFields(f)

		switch lvl {
		case logging.LevelDebug:
			entry.Debug(msg)
		case logging.LevelInfo:
			entry.Info(msg)
		case logging.LevelWarn:
			entry.Warn(msg)
		default:
			entry.Error(msg)
		}
	})
}
