package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the TagExpressions service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse returns the canonical form of expression.
func (c *Client) Parse(ctx context.Context, expression string, opts ...grpc.CallOption) (string, error) {
	out, err := c.invoke(ctx, "Parse", map[string]any{"expression": expression}, opts...)
	if err != nil {
		return "", err
	}
	return stringField(out, "formatted"), nil
}

// Evaluate evaluates expression against tags.
func (c *Client) Evaluate(ctx context.Context, expression string, tags []string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, "Evaluate", map[string]any{
		"expression": expression,
		"tags":       toList(tags),
	}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()["result"].GetBoolValue(), nil
}

// Match evaluates the stored selector against tags.
func (c *Client) Match(ctx context.Context, selector string, tags []string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, "Match", map[string]any{
		"selector": selector,
		"tags":     toList(tags),
	}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()["result"].GetBoolValue(), nil
}

func toList(tags []string) []any {
	list := make([]any, len(tags))
	for i, t := range tags {
		list[i] = t
	}
	return list
}
