package server

import (
	"context"
	"errors"
	"net"

	"github.com/debatecards/debate-server-go/internal/bot"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/match"
	"github.com/debatecards/debate-server-go/internal/repository"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "debate.v1.Simulation"

// Full method names, as seen by interceptors.
const (
	MethodStep             = "/" + ServiceName + "/Step"
	MethodGetGame          = "/" + ServiceName + "/GetGame"
	MethodGenerateCatalog  = "/" + ServiceName + "/GenerateCatalog"
	MethodClearSimulations = "/" + ServiceName + "/ClearSimulations"
)

// SimulationServer is the server API of the Simulation service. Requests and
// responses are generic structs so no generated code is needed.
type SimulationServer interface {
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearSimulations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SimulationServiceDesc describes the Simulation service for grpc.Server.
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Step", Handler: unaryHandler(MethodStep, SimulationServer.Step)},
		{MethodName: "GetGame", Handler: unaryHandler(MethodGetGame, SimulationServer.GetGame)},
		{MethodName: "GenerateCatalog", Handler: unaryHandler(MethodGenerateCatalog, SimulationServer.GenerateCatalog)},
		{MethodName: "ClearSimulations", Handler: unaryHandler(MethodClearSimulations, SimulationServer.ClearSimulations)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "debate/v1/simulation.proto",
}

type unaryMethod func(SimulationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(fullMethod string, call unaryMethod) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimulationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterSimulationServer registers srv with the gRPC registrar.
func RegisterSimulationServer(s grpc.ServiceRegistrar, srv SimulationServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

// SimulationClient calls the Simulation service.
type SimulationClient struct {
	cc grpc.ClientConnInterface
}

// NewSimulationClient wraps a client connection.
func NewSimulationClient(cc grpc.ClientConnInterface) *SimulationClient {
	return &SimulationClient{cc: cc}
}

func (c *SimulationClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulationClient) Step(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodStep, in, opts...)
}

func (c *SimulationClient) GetGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetGame, in, opts...)
}

func (c *SimulationClient) GenerateCatalog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGenerateCatalog, in, opts...)
}

func (c *SimulationClient) ClearSimulations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodClearSimulations, in, opts...)
}

// simulationServer implements SimulationServer on top of the match service.
type simulationServer struct {
	svc    *match.Service
	logger *zap.Logger
}

// NewSimulationServer creates the Simulation service implementation.
func NewSimulationServer(svc *match.Service, logger *zap.Logger) SimulationServer {
	return &simulationServer{svc: svc, logger: logger}
}

func (s *simulationServer) Step(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	result, err := s.svc.Step(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "step", err)
	}
	return newStruct(map[string]any{
		"game_id":  result.GameID,
		"created":  result.Created,
		"setup":    result.SetUp,
		"moves":    movesView(result.Moves),
		"value":    result.Value,
		"nodes":    result.Nodes,
		"checksum": result.Checksum,
		"state":    stateView(result.State),
	})
}

func (s *simulationServer) GetGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["game_id"].GetStringValue()
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "game_id is required")
	}
	state, events, err := s.svc.Game(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "get game", err)
	}
	log := make([]any, 0, len(events))
	for _, e := range events {
		log = append(log, eventView(e))
	}
	return newStruct(map[string]any{
		"state":  stateView(state),
		"events": log,
	})
}

func (s *simulationServer) GenerateCatalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	cat, err := s.svc.GenerateCatalog(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "generate catalog", err)
	}
	return newStruct(map[string]any{
		"cards":     len(cat.Cards()),
		"abilities": len(cat.Abilities()),
	})
}

func (s *simulationServer) ClearSimulations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.svc.ClearSimulations(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "clear simulations", err)
	}
	return newStruct(map[string]any{"deleted": n})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC codes. Unexpected errors are logged.
func (s *simulationServer) toStatus(ctx context.Context, op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, repository.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, match.ErrEmptyCatalog), errors.Is(err, game.ErrGameOver),
		errors.Is(err, bot.ErrNoLegalContinuation):
		code = codes.FailedPrecondition
	case errors.Is(err, game.ErrUnsupported):
		code = codes.Unimplemented
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	if code == codes.Internal && s.logger != nil {
		s.logger.Error("simulation request failed",
			zap.String("op", op),
			zap.String("peer", extractHostFromContext(ctx)),
			zap.Error(err),
		)
	}
	return status.Errorf(code, "%s: %v", op, err)
}

func extractHostFromContext(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != net.Addr(nil) {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
