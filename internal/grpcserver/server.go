// Package grpcserver implements the MatchingService gRPC server.
//
// It delegates all business logic to ranking.Coordinator and handles
// only the gRPC transport concerns: payload decoding, error mapping and
// retry hints. Payloads are google.protobuf.Struct messages shaped like the
// HTTP JSON bodies, so no generated stubs are needed.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/matching-service/internal/ranking"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "jobmate.matching.v1.MatchingService"

const (
	methodRecompute  = "/" + ServiceName + "/Recompute"
	methodGetRanking = "/" + ServiceName + "/GetRanking"
)

// MatchingServer is the server API of MatchingService.
type MatchingServer interface {
	Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRanking(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes MatchingService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recompute", Handler: unaryHandler(methodRecompute, MatchingServer.Recompute)},
		{MethodName: "GetRanking", Handler: unaryHandler(methodGetRanking, MatchingServer.GetRanking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobmate/matching/v1/matching.proto",
}

// Register adds srv to s.
func Register(s *grpc.Server, srv MatchingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(
	fullMethod string,
	call func(MatchingServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchingServer), ctx, req.(*structpb.Struct))
		})
	}
}

// Server implements MatchingServer.
type Server struct {
	coord *ranking.Coordinator
	log   *zap.Logger
}

// NewServer constructs a gRPC Server backed by the given Coordinator.
func NewServer(coord *ranking.Coordinator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{coord: coord, log: log}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

type recomputeRequest struct {
	JobID         string   `mapstructure:"jobId"`
	CandidatePool []string `mapstructure:"candidatePool"`
}

type rankingRequest struct {
	JobID string `mapstructure:"jobId"`
}

// Recompute ranks the candidate pool against a job.
func (s *Server) Recompute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req recomputeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	r, err := s.coord.Recompute(ctx, req.JobID, req.CandidatePool)
	if err != nil {
		return nil, s.toGRPCError(ctx, err)
	}
	return toStruct(r)
}

// GetRanking returns the stored ranking of a job.
func (s *Server) GetRanking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rankingRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	r, err := s.coord.Ranking(ctx, req.JobID)
	if err != nil {
		return nil, s.toGRPCError(ctx, err)
	}
	return toStruct(r)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// decode maps a Struct payload onto out, rejecting unknown fields.
func decode(in *structpb.Struct, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return status.Error(codes.Internal, "internal server error")
	}
	if err := dec.Decode(in.AsMap()); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

// toStruct converts a JSON-tagged value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors. Contention and
// unavailability carry a retry-after trailer in seconds.
func (s *Server) toGRPCError(ctx context.Context, err error) error {
	var (
		ve *ranking.ValidationError
		ip *ranking.InProgressError
	)
	switch {
	case errors.Is(err, ranking.ErrJobNotFound), errors.Is(err, ranking.ErrNoRanking):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ranking.ErrEmptyPool):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.As(err, &ip):
		setRetryAfter(ctx, int(math.Ceil(ip.RetryAfter.Seconds())))
		return status.Error(codes.Aborted, ranking.ErrRecomputeInProgress.Error())
	case errors.Is(err, ranking.ErrAggregationUnavailable):
		s.log.Warn("recompute unavailable", zap.Error(err))
		setRetryAfter(ctx, 5)
		return status.Error(codes.Unavailable, ranking.ErrAggregationUnavailable.Error())
	case errors.Is(err, ranking.ErrPersistenceUnavailable):
		s.log.Warn("recompute unavailable", zap.Error(err))
		setRetryAfter(ctx, 5)
		return status.Error(codes.Unavailable, ranking.ErrPersistenceUnavailable.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error("matching rpc failed", zap.Error(err))
	return status.Error(codes.Internal, "internal server error")
}

func setRetryAfter(ctx context.Context, secs int) {
	// Fails only outside a server stream, e.g. direct calls in tests.
	_ = grpc.SetTrailer(ctx, metadata.Pairs("retry-after", strconv.Itoa(secs)))
}
