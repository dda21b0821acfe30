// Package grpcconn adapts a gRPC endpoint into a shardset.DataConnection.
// The wire contract is a single unary method, shardset.Procedure/Invoke,
// carrying JSON-encoded request and response bodies, so no generated proto
// code is needed on either side. RegisterServer exposes the matching
// server-side hookup for shard processes.
//
// Cancellation comes back from gRPC as a status with codes.Canceled; the
// adapter translates it into context.Canceled so the fan-out engine can
// tell expected race cancellations apart from real failures.
package grpcconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/pavandhadge/shardset"
)

const (
	// ServiceName is the gRPC service shard endpoints serve.
	ServiceName = "shardset.Procedure"
	// methodInvoke is the full method path of the invocation primitive.
	methodInvoke = "/shardset.Procedure/Invoke"
	// codecName is the content-subtype identifying the JSON codec.
	codecName = "shardset-json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type invokeRequest struct {
	Procedure  string              `json:"procedure"`
	Parameters shardset.Parameters `json:"parameters,omitempty"`
	SingleRow  bool                `json:"single_row,omitempty"`
}

type invokeResponse struct {
	Rows []shardset.Row `json:"rows,omitempty"`
}

// jsonCodec is the wire codec for both directions. Registered globally so
// servers resolve it from the request's content-subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

// Connection is a shardset.DataConnection backed by a gRPC channel.
type Connection struct {
	cc *grpc.ClientConn
}

var _ shardset.DataConnection = (*Connection)(nil)

// New wraps an established gRPC channel. The channel's lifecycle passes to
// the Connection: Close closes it.
func New(cc *grpc.ClientConn) *Connection {
	return &Connection{cc: cc}
}

// Dial opens a channel to target and wraps it. Without explicit dial
// options the channel is insecure, which suits shard endpoints on a
// private network; pass credentials for anything else.
func Dial(target string, opts ...grpc.DialOption) (*Connection, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial shard endpoint %s: %w", target, err)
	}
	return New(cc), nil
}

// Invoke implements shardset.DataConnection.
func (c *Connection) Invoke(ctx context.Context, procedure string, params shardset.Parameters, singleRow bool) ([]shardset.Row, error) {
	req := invokeRequest{Procedure: procedure, Parameters: params, SingleRow: singleRow}
	var resp invokeResponse
	err := c.cc.Invoke(ctx, methodInvoke, &req, &resp, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, c.translate(procedure, err)
	}
	rows := resp.Rows
	if singleRow && len(rows) > 1 {
		rows = rows[:1]
	}
	return rows, nil
}

// translate maps transport errors onto the engine's error contract.
func (c *Connection) translate(procedure string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return fmt.Errorf("procedure %q on %s: %w", procedure, c.Description(), context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("procedure %q on %s: %w", procedure, c.Description(), context.DeadlineExceeded)
	}
	return fmt.Errorf("procedure %q on %s: %w", procedure, c.Description(), err)
}

// Description implements shardset.DataConnection.
func (c *Connection) Description() string {
	return "grpc " + c.cc.Target()
}

// Close implements shardset.DataConnection.
func (c *Connection) Close() error {
	return c.cc.Close()
}

// Server is the server-side contract of the Invoke method: the shard
// process's own procedure dispatcher.
type Server interface {
	InvokeProcedure(ctx context.Context, procedure string, params shardset.Parameters, singleRow bool) ([]shardset.Row, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "github.com/pavandhadge/shardset/grpcconn",
}

// RegisterServer registers a procedure dispatcher on a gRPC server.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(invokeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	rows, err := srv.(Server).InvokeProcedure(ctx, req.Procedure, req.Parameters, req.SingleRow)
	if err != nil {
		return nil, err
	}
	return &invokeResponse{Rows: rows}, nil
}
