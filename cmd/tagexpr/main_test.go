package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	grpcapi "github.com/lemonberrylabs/tagexpr/pkg/api/grpc"
	"github.com/lemonberrylabs/tagexpr/pkg/store"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFormatCommand(t *testing.T) {
	out, err := execute(t, "format", "a and b or not c")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if out != "( ( a and b ) or not ( c ) )\n" {
		t.Errorf("output = %q", out)
	}
}

func TestFormatCommandSyntaxError(t *testing.T) {
	_, err := execute(t, "format", "a b")
	if err == nil {
		t.Fatal("expected error")
	}
	var derr diagnosticError
	if !errors.As(err, &derr) {
		t.Fatalf("expected diagnosticError, got %T", err)
	}
	if !strings.HasSuffix(err.Error(), "______________^ (HERE)") {
		t.Errorf("diagnostic = %q", err.Error())
	}
}

func TestEvalCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"eval", "@a and not @b", "@a"}, "true\n"},
		{[]string{"eval", "@a and not @b", "@a", "@b"}, "false\n"},
		{[]string{"eval", "@a and @b", "--tags", "@a, @b"}, "true\n"},
		{[]string{"eval", "@a and @b", "@a", "--tags", "@b"}, "true\n"},
		{[]string{"eval", ""}, "true\n"},
	}
	for _, tt := range tests {
		out, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if out != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, out, tt.want)
		}
	}
}

func TestEvalExitCode(t *testing.T) {
	out, err := execute(t, "eval", "--exit-code", "@a", "@b")
	if !errors.Is(err, errNoMatch) {
		t.Fatalf("expected errNoMatch, got %v", err)
	}
	if out != "false\n" {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "eval", "--exit-code", "@a", "@a"); err != nil {
		t.Errorf("expected success for a match, got %v", err)
	}
}

func TestTokensCommand(t *testing.T) {
	out, err := execute(t, "tokens", "not a")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	want := "0\tNOT\tnot\n4\tIDENT\ta\n5\tEND\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	if _, err := execute(t, "tokens", `a\`); err == nil {
		t.Error("expected illegal escape error")
	}
}

func TestCheckCommand(t *testing.T) {
	fixtures := filepath.Join("..", "..", "pkg", "tagexpr", "testdata")
	out, err := execute(t, "check",
		filepath.Join(fixtures, "parsing.yml"),
		filepath.Join(fixtures, "evaluations.yml"),
		filepath.Join(fixtures, "errors.yml"),
	)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, kind := range []string{"(parsing)", "(evaluations)", "(errors)"} {
		if !strings.Contains(out, kind) {
			t.Errorf("expected %s in output:\n%s", kind, out)
		}
	}
	if strings.Contains(out, "FAIL") {
		t.Errorf("unexpected failure:\n%s", out)
	}
}

func TestCheckCommandFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	content := "- expression: 'a and b'\n  formatted: '( b and a )'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "check", path)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "( a and b )") {
		t.Errorf("output = %q", out)
	}
}

func TestMatchCommand(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	if _, err := st.Create("nightly", "@slow or @nightly", ""); err != nil {
		t.Fatal(err)
	}

	srv := grpcapi.New(st, grpcapi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.ServeListener(lis)
	defer srv.GracefulStop()

	addr := lis.Addr().String()
	out, err := execute(t, "match", "--server", addr, "nightly", "@slow")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if out != "true\n" {
		t.Errorf("output = %q", out)
	}

	_, err = execute(t, "match", "--server", addr, "--exit-code", "nightly", "@fast")
	if !errors.Is(err, errNoMatch) {
		t.Errorf("expected errNoMatch, got %v", err)
	}

	if _, err := execute(t, "match", "--server", addr, "missing"); err == nil {
		t.Error("expected error for unknown selector")
	}
}

func TestOpenStore(t *testing.T) {
	mem, err := openStore("")
	if err != nil {
		t.Fatalf("openStore(memory): %v", err)
	}
	defer mem.Close()
	if _, ok := mem.(*store.MemoryStore); !ok {
		t.Errorf("expected *store.MemoryStore, got %T", mem)
	}

	db, err := openStore(filepath.Join(t.TempDir(), "selectors.db"))
	if err != nil {
		t.Fatalf("openStore(sqlite): %v", err)
	}
	defer db.Close()
	if _, ok := db.(*store.SQLiteStore); !ok {
		t.Errorf("expected *store.SQLiteStore, got %T", db)
	}
}
