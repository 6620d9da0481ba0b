package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// WatchEvent is one decoded frame of a watch stream.
type WatchEvent struct {
	Type     string
	WatchID  string
	Position *domain.Position
	Err      *domain.PositionError
}

// Client talks to a geolocd gRPC endpoint.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to addr. Without options the connection is plaintext.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req any, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return fromStatus(err)
	}
	if resp == nil {
		return nil
	}
	return fromStruct(out, resp)
}

func (c *Client) CurrentPosition(ctx context.Context, opts domain.OptionsDocument) (domain.Position, error) {
	var pos domain.Position
	err := c.invoke(ctx, "GetCurrentPosition", opts, &pos)
	return pos, err
}

func (c *Client) SetConfiguration(ctx context.Context, doc domain.ConfigDocument) (domain.ConfigDocument, error) {
	var out domain.ConfigDocument
	err := c.invoke(ctx, "SetConfiguration", doc, &out)
	return out, err
}

func (c *Client) RequestAuthorization(ctx context.Context) (domain.AuthorizationStatus, error) {
	var out struct {
		Status domain.AuthorizationStatus `json:"status"`
	}
	err := c.invoke(ctx, "RequestAuthorization", struct{}{}, &out)
	return out.Status, err
}

func (c *Client) StopObserving(ctx context.Context) error {
	return c.invoke(ctx, "StopObserving", struct{}{}, nil)
}

// Watch streams watch events to fn until ctx ends, the server ends the
// watch, or fn returns an error.
func (c *Client) Watch(ctx context.Context, opts domain.OptionsDocument, fn func(WatchEvent) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &watchStreamDesc, "/"+ServiceName+"/WatchPosition")
	if err != nil {
		return fromStatus(err)
	}
	in, err := toStruct(opts)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}

	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fromStatus(err)
		}
		ev, err := decodeWatchEvent(out)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == "end" {
			return nil
		}
	}
}

func decodeWatchEvent(s *structpb.Struct) (WatchEvent, error) {
	var raw struct {
		Type    string          `json:"type"`
		WatchID string          `json:"watchId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := fromStruct(s, &raw); err != nil {
		return WatchEvent{}, err
	}
	ev := WatchEvent{Type: raw.Type, WatchID: raw.WatchID}
	switch raw.Type {
	case "position":
		var p domain.Position
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode position: %w", err)
		}
		ev.Position = &p
	case "error":
		var pe domain.PositionError
		if err := json.Unmarshal(raw.Payload, &pe); err != nil {
			return ev, fmt.Errorf("decode error: %w", err)
		}
		ev.Err = &pe
	}
	return ev, nil
}
