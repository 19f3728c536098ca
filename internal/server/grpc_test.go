package server

import (
	"context"
	"net"
	"testing"

	"github.com/debatecards/debate-server-go/internal/bot"
	"github.com/debatecards/debate-server-go/internal/match"
	"github.com/debatecards/debate-server-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T, extra ...grpc.UnaryServerInterceptor) *SimulationClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	svc := match.NewService(repository.NewMemory(),
		match.WithLogger(logger),
		match.WithSeed(3),
		match.WithBot(bot.New(bot.WithDepth(2))),
	)

	interceptors := append([]grpc.UnaryServerInterceptor{
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
	}, extra...)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(ChainUnaryInterceptors(interceptors...)))
	RegisterSimulationServer(srv, NewSimulationServer(svc, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewSimulationClient(conn)
}

func TestSimulationService(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.Step(ctx, nil)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	cat, err := client.GenerateCatalog(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(31), cat.Fields["cards"].GetNumberValue())
	assert.Positive(t, cat.Fields["abilities"].GetNumberValue())

	first, err := client.Step(ctx, nil)
	require.NoError(t, err)
	assert.True(t, first.Fields["created"].GetBoolValue())
	assert.True(t, first.Fields["setup"].GetBoolValue())
	id := first.Fields["game_id"].GetStringValue()
	require.NotEmpty(t, id)
	state := first.Fields["state"].GetStructValue()
	assert.Equal(t, "BUSY", state.Fields["status"].GetStringValue())
	assert.Len(t, state.Fields["players"].GetListValue().GetValues(), 2)

	second, err := client.Step(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, id, second.Fields["game_id"].GetStringValue())
	moves := second.Fields["moves"].GetListValue().GetValues()
	require.Len(t, moves, 1)
	assert.Equal(t, "DRAW", moves[0].GetStructValue().Fields["kind"].GetStringValue())

	req, err := structpb.NewStruct(map[string]any{"game_id": id})
	require.NoError(t, err)
	got, err := client.GetGame(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, second.Fields["checksum"].GetStringValue(),
		got.Fields["state"].GetStructValue().Fields["checksum"].GetStringValue())
	assert.NotEmpty(t, got.Fields["events"].GetListValue().GetValues())

	cleared, err := client.ClearSimulations(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), cleared.Fields["deleted"].GetNumberValue())

	_, err = client.GetGame(ctx, req)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGetGameRequiresID(t *testing.T) {
	client := newTestClient(t)
	_, err := client.GetGame(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecoveryInterceptor(t *testing.T) {
	panicking := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		panic("boom")
	}
	client := newTestClient(t, panicking)
	_, err := client.ClearSimulations(context.Background(), nil)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mark("a"), mark("b"), mark("c"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: MethodStep},
		func(ctx context.Context, req any) (any, error) {
			order = append(order, "handler")
			return req, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}
