package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
)

// Every RPC takes and returns a google.protobuf.Struct, so the default proto
// codec carries the payloads and no generated stubs are needed.

type ProfilesServiceServer interface {
	CreateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProfiles(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ExtractionServiceServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DiscardDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ReadingsServiceServer interface {
	CreateReading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReadings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteReading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSourceImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ExportServiceServer interface {
	ExportReadings(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// unary adapts a typed method onto grpc.MethodHandler, mapping service errors
// onto status codes on the way out.
func unary[S any](service, method string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(S), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, common.ToStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, handler)
		},
	}
}

const (
	ProfilesServiceName   = "vitals.v1.ProfilesService"
	ExtractionServiceName = "vitals.v1.ExtractionService"
	ReadingsServiceName   = "vitals.v1.ReadingsService"
	ExportServiceName     = "vitals.v1.ExportService"
)

var ProfilesServiceDesc = grpc.ServiceDesc{
	ServiceName: ProfilesServiceName,
	HandlerType: (*ProfilesServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ProfilesServiceName, "CreateProfile", ProfilesServiceServer.CreateProfile),
		unary(ProfilesServiceName, "ListProfiles", ProfilesServiceServer.ListProfiles),
	},
	Metadata: "vitals/v1/vitals.proto",
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ExtractionServiceName, "Extract", ExtractionServiceServer.Extract),
		unary(ExtractionServiceName, "GetDraft", ExtractionServiceServer.GetDraft),
		unary(ExtractionServiceName, "EditDraft", ExtractionServiceServer.EditDraft),
		unary(ExtractionServiceName, "ConfirmDraft", ExtractionServiceServer.ConfirmDraft),
		unary(ExtractionServiceName, "DiscardDraft", ExtractionServiceServer.DiscardDraft),
	},
	Metadata: "vitals/v1/vitals.proto",
}

var ReadingsServiceDesc = grpc.ServiceDesc{
	ServiceName: ReadingsServiceName,
	HandlerType: (*ReadingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ReadingsServiceName, "CreateReading", ReadingsServiceServer.CreateReading),
		unary(ReadingsServiceName, "ListReadings", ReadingsServiceServer.ListReadings),
		unary(ReadingsServiceName, "GetReading", ReadingsServiceServer.GetReading),
		unary(ReadingsServiceName, "DeleteReading", ReadingsServiceServer.DeleteReading),
		unary(ReadingsServiceName, "GetSourceImage", ReadingsServiceServer.GetSourceImage),
		unary(ReadingsServiceName, "GetSummary", ReadingsServiceServer.GetSummary),
	},
	Metadata: "vitals/v1/vitals.proto",
}

var ExportServiceDesc = grpc.ServiceDesc{
	ServiceName: ExportServiceName,
	HandlerType: (*ExportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ExportServiceName, "ExportReadings", ExportServiceServer.ExportReadings),
	},
	Metadata: "vitals/v1/vitals.proto",
}

// Servers groups the handlers registered on one grpc.Server.
type Servers struct {
	Profiles   ProfilesServiceServer
	Extraction ExtractionServiceServer
	Readings   ReadingsServiceServer
	Export     ExportServiceServer
}

// Register installs every service plus the standard health service and
// returns the latter so callers can flip it to NOT_SERVING on shutdown.
func Register(s *grpc.Server, srv Servers) *health.Server {
	s.RegisterService(&ProfilesServiceDesc, srv.Profiles)
	s.RegisterService(&ExtractionServiceDesc, srv.Extraction)
	s.RegisterService(&ReadingsServiceDesc, srv.Readings)
	s.RegisterService(&ExportServiceDesc, srv.Export)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	for _, name := range []string{"", ProfilesServiceName, ExtractionServiceName, ReadingsServiceName, ExportServiceName} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	return hs
}

// LoggingInterceptor tags each call with a request id and logs its outcome.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, rid := common.EnsureRequestID(ctx)
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc.call.failed", "method", info.FullMethod, "req_id", rid, "code", status.Code(err).String(), "err", err)
		} else {
			logger.Debug("grpc.call.ok", "method", info.FullMethod, "req_id", rid)
		}
		return resp, err
	}
}

func invalidArg(err error) error {
	return common.InvalidArgumentError(err.Error())
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
