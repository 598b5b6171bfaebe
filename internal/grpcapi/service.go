// Package grpcapi exposes the calculation service over gRPC. Messages are
// google.protobuf.Struct values carrying the same fields as the JSON API, so
// no generated stubs are needed.
package grpcapi

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"calculator-api/internal/calculator"
	"calculator-api/internal/observability"
	"calculator-api/internal/service"
)

const (
	ServiceName         = "calculator.v1.CalculatorService"
	CalculateFullMethod = "/" + ServiceName + "/Calculate"

	requestIDMetadataKey = "x-request-id"
	internalErrorMessage = "internal error"
)

// CalculatorServiceServer is the server API for calculator.v1.CalculatorService.
type CalculatorServiceServer interface {
	Calculate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func calculateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServiceServer).Calculate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CalculateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServiceServer).Calculate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes calculator.v1.CalculatorService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Calculate", Handler: calculateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calculator/v1/calculator.proto",
}

// RegisterCalculatorServiceServer registers srv on s.
func RegisterCalculatorServiceServer(s grpc.ServiceRegistrar, srv CalculatorServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Calculator implements CalculatorServiceServer over the calculation service.
type Calculator struct {
	svc *service.Service
	log *zap.Logger
}

func NewCalculator(svc *service.Service, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{svc: svc, log: log}
}

// Calculate takes {"operation", "a", "b"} and returns
// {"operation", "a", "b", "result", "timestamp"}.
func (c *Calculator) Calculate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx = withRequestID(ctx)

	res, err := c.svc.CalculateFields(ctx, in.AsMap())
	if err != nil {
		return nil, c.toStatus(ctx, err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"operation": res.Operation,
		"a":         res.A,
		"b":         res.B,
		"result":    res.Result,
		"timestamp": res.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, c.toStatus(ctx, err)
	}
	return out, nil
}

// toStatus maps client errors to InvalidArgument with field violations and
// everything else to a bare Internal.
func (c *Calculator) toStatus(ctx context.Context, err error) error {
	if !calculator.IsClientError(err) {
		c.log.Error("grpc calculate failed",
			zap.Error(err),
			zap.String("request_id", observability.RequestIDFromContext(ctx)),
		)
		return status.Error(codes.Internal, internalErrorMessage)
	}

	st := status.New(codes.InvalidArgument, err.Error())
	var ce *calculator.Error
	if errors.As(err, &ce) && len(ce.Details) > 0 {
		br := &errdetails.BadRequest{}
		for _, field := range slices.Sorted(maps.Keys(ce.Details)) {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       field,
				Description: ce.Details[field],
			})
		}
		if withDetails, derr := st.WithDetails(br); derr == nil {
			st = withDetails
		}
	}
	return st.Err()
}

// withRequestID reuses an incoming x-request-id or mints one.
func withRequestID(ctx context.Context) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDMetadataKey); len(ids) > 0 && ids[0] != "" {
			return observability.ContextWithRequestID(ctx, ids[0])
		}
	}
	return observability.ContextWithRequestID(ctx, observability.NewRequestID())
}
