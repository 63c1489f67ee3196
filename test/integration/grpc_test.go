package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	grpcapi "github.com/lemonberrylabs/tagexpr/pkg/api/grpc"
)

// grpcEndpoint returns the gRPC endpoint address (host:port).
func grpcEndpoint() string {
	if ep := os.Getenv("TAGEXPR_GRPC_ENDPOINT"); ep != "" {
		return ep
	}
	return "localhost:8788"
}

// newGRPCClient connects to the server, skipping the test when its health
// check does not answer.
func newGRPCClient(t *testing.T) *grpcapi.Client {
	t.Helper()
	conn, err := grpc.NewClient(grpcEndpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcapi.ServiceName}); err != nil {
		t.Skipf("tagexpr gRPC server not reachable at %s: %v", grpcEndpoint(), err)
	}
	return grpcapi.NewClient(conn)
}

func TestGRPC_Parse(t *testing.T) {
	client := newGRPCClient(t)

	formatted, err := client.Parse(context.Background(), "not a or b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if formatted != "( not ( a ) or b )" {
		t.Errorf("formatted = %q", formatted)
	}

	_, err = client.Parse(context.Background(), "a and")
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_Evaluate(t *testing.T) {
	client := newGRPCClient(t)

	ok, err := client.Evaluate(context.Background(), "@a and @b", []string{"@a", "@b"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Error("expected @a and @b to match")
	}
}

func TestGRPC_MatchSelectorCreatedViaREST(t *testing.T) {
	requireServer(t)
	client := newGRPCClient(t)

	name := uniqueName("it-grpc")
	createSelector(t, name, "@db and not @slow")

	ok, err := client.Match(context.Background(), name, []string{"@db"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ok {
		t.Error("expected selector to match @db")
	}

	_, err = client.Match(context.Background(), uniqueName("it-missing"), nil)
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
