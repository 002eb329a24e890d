package run

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the run service over a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a client using conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Req, Resp any](ctx context.Context, conn grpc.ClientConnInterface, name string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	wire, err := encodeStruct(in)
	if err != nil {
		return nil, err
	}
	reply := new(structpb.Struct)
	if err := conn.Invoke(ctx, fullMethod(name), wire, reply, opts...); err != nil {
		return nil, err
	}
	out := new(Resp)
	if err := decodeStruct(reply, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRun(ctx context.Context, in *CreateRunRequest, opts ...grpc.CallOption) (*RunView, error) {
	return invoke[CreateRunRequest, RunView](ctx, c.conn, methodCreateRun, in, opts...)
}

func (c *Client) ListRuns(ctx context.Context, in *ListRunsRequest, opts ...grpc.CallOption) (*ListRunsResponse, error) {
	return invoke[ListRunsRequest, ListRunsResponse](ctx, c.conn, methodListRuns, in, opts...)
}

func (c *Client) GetRun(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunView, error) {
	return invoke[RunRequest, RunView](ctx, c.conn, methodGetRun, in, opts...)
}

func (c *Client) Notify(ctx context.Context, in *NotifyRequest, opts ...grpc.CallOption) (*OutcomeView, error) {
	return invoke[NotifyRequest, OutcomeView](ctx, c.conn, methodNotify, in, opts...)
}

func (c *Client) Override(ctx context.Context, in *OverrideRequest, opts ...grpc.CallOption) (*OutcomeView, error) {
	return invoke[OverrideRequest, OutcomeView](ctx, c.conn, methodOverride, in, opts...)
}

func (c *Client) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	return invoke[GetRequest, GetResponse](ctx, c.conn, methodGet, in, opts...)
}

func (c *Client) Position(ctx context.Context, in *PositionRequest, opts ...grpc.CallOption) (*PositionResponse, error) {
	return invoke[PositionRequest, PositionResponse](ctx, c.conn, methodPosition, in, opts...)
}

func (c *Client) Groups(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*GroupsResponse, error) {
	return invoke[RunRequest, GroupsResponse](ctx, c.conn, methodGroups, in, opts...)
}

func (c *Client) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryRequest, HistoryResponse](ctx, c.conn, methodHistory, in, opts...)
}

func (c *Client) EndRun(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*EndRunResponse, error) {
	return invoke[RunRequest, EndRunResponse](ctx, c.conn, methodEndRun, in, opts...)
}

// WatchClient receives actions from a Watch stream.
type WatchClient struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the server ends the
// stream.
func (w *WatchClient) Recv() (*WatchEvent, error) {
	wire := new(structpb.Struct)
	if err := w.stream.RecvMsg(wire); err != nil {
		return nil, err
	}
	out := new(WatchEvent)
	if err := decodeStruct(wire, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch streams the actions of one run, or of every run when RunID is empty.
func (c *Client) Watch(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*WatchClient, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod(methodWatch), opts...)
	if err != nil {
		return nil, err
	}
	wire, err := encodeStruct(in)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(wire); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}
