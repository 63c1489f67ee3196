package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "github.com/lemonberrylabs/tagexpr/pkg/api/grpc"
	"github.com/lemonberrylabs/tagexpr/pkg/fixture"
	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// errNoMatch fails a command without printing anything.
var errNoMatch = errors.New("no match")

// diagnosticError prints a syntax error with its position marker.
type diagnosticError struct {
	err *tagexpr.SyntaxError
}

func (e diagnosticError) Error() string { return e.err.Diagnostic() }

func (e diagnosticError) Unwrap() error { return e.err }

func parseArg(expression string) (tagexpr.Expr, error) {
	expr, err := tagexpr.Parse(expression)
	if err != nil {
		var serr *tagexpr.SyntaxError
		if errors.As(err, &serr) {
			return nil, diagnosticError{serr}
		}
		return nil, err
	}
	return expr, nil
}

// collectTags merges positional tags with the comma-separated --tags flag.
func collectTags(cmd *cobra.Command, positional []string) []string {
	tags := append([]string(nil), positional...)
	if v, _ := cmd.Flags().GetString("tags"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func printResult(cmd *cobra.Command, result bool) error {
	fmt.Fprintln(cmd.OutOrStdout(), result)
	if exitCode, _ := cmd.Flags().GetBool("exit-code"); exitCode && !result {
		cmd.SilenceErrors = true
		return errNoMatch
	}
	return nil
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <expression>",
		Short: "Print the canonical form of a tag expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := parseArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr.String())
			return nil
		},
	}
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <expression> [tags...]",
		Short: "Evaluate a tag expression against a set of tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := parseArg(args[0])
			if err != nil {
				return err
			}
			return printResult(cmd, tagexpr.Evaluate(expr, collectTags(cmd, args[1:])))
		},
	}
	cmd.Flags().String("tags", "", "Comma-separated tags, added to the positional ones")
	cmd.Flags().Bool("exit-code", false, "Exit with status 1 when the expression does not match")
	return cmd
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <expression>",
		Short: "Print the tokens of a tag expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := tagexpr.NewLexer(args[0]).Tokenize()
			if err != nil {
				var serr *tagexpr.SyntaxError
				if errors.As(err, &serr) {
					return diagnosticError{serr}
				}
				return err
			}
			out := cmd.OutOrStdout()
			for _, tok := range tokens {
				if tok.Value != "" {
					fmt.Fprintf(out, "%d\t%s\t%s\n", tok.Pos, tok.Type, tok.Value)
				} else {
					fmt.Fprintf(out, "%d\t%s\n", tok.Pos, tok.Type)
				}
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <fixture.yml>...",
		Short: "Run conformance fixtures (parsing, evaluations or errors)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				report, err := fixture.Run(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (%s): %d/%d passed\n", report.Path, report.Kind, report.Passed(), len(report.Results))
				for _, res := range report.Results {
					if !res.Passed {
						fmt.Fprintf(out, "  FAIL %s\n    got:  %s\n    want: %s\n", res.Name, res.Got, res.Want)
					} else if verbose {
						fmt.Fprintf(out, "  ok   %s\n", res.Name)
					}
				}
				failed += len(report.Failures())
			}
			if failed > 0 {
				return fmt.Errorf("%d fixture case(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "List passing cases too")
	return cmd
}

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <selector> [tags...]",
		Short: "Evaluate a stored selector on a running server over gRPC",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := envOrDefault("TAGEXPR_GRPC_ENDPOINT", "localhost:8788")
			if v, _ := cmd.Flags().GetString("server"); v != "" {
				server = v
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			conn, err := grpc.NewClient(server, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", server, err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			result, err := grpcapi.NewClient(conn).Match(ctx, args[0], collectTags(cmd, args[1:]))
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}
	cmd.Flags().String("server", "", "gRPC server address (default localhost:8788, env TAGEXPR_GRPC_ENDPOINT)")
	cmd.Flags().String("tags", "", "Comma-separated tags, added to the positional ones")
	cmd.Flags().Bool("exit-code", false, "Exit with status 1 when the selector does not match")
	cmd.Flags().Duration("timeout", 5*time.Second, "Call timeout")
	return cmd
}
