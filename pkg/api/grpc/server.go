// Package grpcapi implements the tagexpr.v1.TagExpressions gRPC service.
//
// Requests and responses are google.protobuf.Struct messages carrying the
// same fields as the REST API bodies, so no generated code is needed.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/tagexpr/pkg/observability"
	"github.com/lemonberrylabs/tagexpr/pkg/store"
	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tagexpr.v1.TagExpressions"

// TagExpressionsServer is the server API for the TagExpressions service.
type TagExpressionsServer interface {
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Match(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server implements TagExpressionsServer and the standard health service.
type Server struct {
	store   store.Store
	logger  *slog.Logger
	metrics observability.Recorder
	tracer  observability.Tracer
	health  *health.Server
	grpc    *grpc.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(s *Server) { s.metrics = r }
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New creates a new gRPC server. Match looks selectors up in st.
func New(st store.Store, opts ...Option) *Server {
	srv := &Server{
		store:   st,
		logger:  slog.Default(),
		metrics: observability.Noop{},
		tracer:  observability.NoopTracer{},
		health:  health.NewServer(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.logCalls))
	gs.RegisterService(&ServiceDesc, srv)
	healthpb.RegisterHealthServer(gs, srv.health)
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop marks the service as not serving and stops the server
// once pending calls finish.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// logCalls logs every unary call at debug level and failures at warn.
func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	attrs := []any{
		slog.String("method", info.FullMethod),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("grpc call failed", append(attrs, slog.String("code", status.Code(err).String()), slog.String("error", err.Error()))...)
	} else {
		s.logger.Debug("grpc call", attrs...)
	}
	return resp, err
}

// Parse returns the canonical form of "expression".
func (s *Server) Parse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	expression := stringField(req, "expression")
	expr, err := s.parse(ctx, expression)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"expression": expression,
		"formatted":  expr.String(),
	})
}

// Evaluate evaluates "expression" against "tags".
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	expression := stringField(req, "expression")
	tags, err := tagsField(req)
	if err != nil {
		return nil, err
	}
	expr, err := s.parse(ctx, expression)
	if err != nil {
		return nil, err
	}

	result := tagexpr.Evaluate(expr, tags)
	s.metrics.RecordEvaluation(ctx, "adhoc", result)
	return structpb.NewStruct(map[string]any{
		"expression": expression,
		"formatted":  expr.String(),
		"result":     result,
	})
}

// Match evaluates the stored selector named "selector" against "tags".
func (s *Server) Match(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "selector")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "selector is required")
	}
	tags, err := tagsField(req)
	if err != nil {
		return nil, err
	}

	sel, err := s.store.Get(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	result := sel.Matches(tagexpr.NewTagSet(tags...))
	s.metrics.RecordEvaluation(ctx, sel.Name, result)
	return structpb.NewStruct(map[string]any{
		"selector":   sel.Name,
		"expression": sel.Expression,
		"result":     result,
	})
}

func (s *Server) parse(ctx context.Context, expression string) (tagexpr.Expr, error) {
	_, span := s.tracer.Start(ctx, "parse", expression)
	expr, err := tagexpr.Parse(expression)
	s.tracer.End(span, err)

	if err != nil {
		s.metrics.RecordParse(ctx, false, observability.ErrorKind(err))
		observability.LogParseError(s.logger, "grpc", expression, err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.metrics.RecordParse(ctx, true, "")
	return expr, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func tagsField(req *structpb.Struct) ([]string, error) {
	values := req.GetFields()["tags"].GetListValue().GetValues()
	tags := make([]string, 0, len(values))
	for i, v := range values {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "tags[%d] must be a string", i)
		}
		tags = append(tags, sv.StringValue)
	}
	return tags, nil
}

// --- Service descriptor ---

func unaryHandler(method string, call func(TagExpressionsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TagExpressionsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TagExpressionsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the TagExpressions service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TagExpressionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Parse", Handler: unaryHandler("Parse", TagExpressionsServer.Parse)},
		{MethodName: "Evaluate", Handler: unaryHandler("Evaluate", TagExpressionsServer.Evaluate)},
		{MethodName: "Match", Handler: unaryHandler("Match", TagExpressionsServer.Match)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tagexpr/v1/tagexpr.proto",
}
