package grpc

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "geoloc.v1.Geolocation"

const (
	watchBuffer       = 64
	watchLivenessPoll = time.Second
)

// GeolocationServer is the method set registered under ServiceName. All
// messages are google.protobuf.Struct carrying the JSON wire documents.
type GeolocationServer interface {
	GetCurrentPosition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	WatchPosition(in *structpb.Struct, stream grpc.ServerStream) error
	SetConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RequestAuthorization(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	StopObserving(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// GrpcServer exposes the geolocation façade over gRPC.
type GrpcServer struct {
	geo    ports.Geolocation
	logger *slog.Logger
}

// NewGrpcServer creates a gRPC server with the geolocation service registered.
func NewGrpcServer(geo ports.Geolocation, opts ...grpc.ServerOption) *grpc.Server {
	s := &GrpcServer{geo: geo, logger: slog.Default().With("component", "grpc")}
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GrpcServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("RPC", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	return resp, err
}

func (s *GrpcServer) GetCurrentPosition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var doc domain.OptionsDocument
	if err := fromStruct(in, &doc); err != nil {
		return nil, toStatus(domain.ErrInvalidOptions)
	}
	pos, err := s.geo.CurrentPosition(ctx, doc.Request())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(pos)
}

// watchMessage is one frame of the WatchPosition stream.
type watchMessage struct {
	Type    string `json:"type"` // watch, position, error, end
	WatchID string `json:"watchId"`
	Payload any    `json:"payload,omitempty"`
}

// WatchPosition registers a watch for the lifetime of the stream. The
// stream ends when the client cancels or the watch is stopped server side.
func (s *GrpcServer) WatchPosition(in *structpb.Struct, stream grpc.ServerStream) error {
	var doc domain.OptionsDocument
	if err := fromStruct(in, &doc); err != nil {
		return toStatus(domain.ErrInvalidOptions)
	}

	ctx := stream.Context()
	frames := make(chan watchMessage, watchBuffer)
	push := func(m watchMessage) {
		select {
		case frames <- m:
		default:
			s.logger.Warn("Watch stream backlog full, dropping frame", "type", m.Type)
		}
	}

	var id domain.WatchID
	ready := make(chan struct{})
	id = s.geo.WatchPosition(
		func(p domain.Position) {
			<-ready
			push(watchMessage{Type: "position", WatchID: id.String(), Payload: p})
		},
		func(e *domain.PositionError) {
			<-ready
			push(watchMessage{Type: "error", WatchID: id.String(), Payload: e})
		},
		doc.Watch(),
	)
	push(watchMessage{Type: "watch", WatchID: id.String()})
	close(ready)
	defer s.geo.ClearWatch(id)

	poll := time.NewTicker(watchLivenessPoll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-frames:
			if err := s.send(stream, m); err != nil {
				return err
			}
		case <-poll.C:
			if !slices.Contains(s.geo.ActiveWatches(), id) {
				return s.send(stream, watchMessage{Type: "end", WatchID: id.String()})
			}
		}
	}
}

func (s *GrpcServer) send(stream grpc.ServerStream, m watchMessage) error {
	out, err := toStruct(m)
	if err != nil {
		return toStatus(err)
	}
	return stream.SendMsg(out)
}

func (s *GrpcServer) SetConfiguration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var doc domain.ConfigDocument
	if err := fromStruct(in, &doc); err != nil {
		return nil, toStatus(domain.ErrInvalidOptions)
	}
	cfg, err := doc.Config()
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.geo.SetConfiguration(cfg); err != nil {
		return nil, toStatus(err)
	}
	return toStruct(domain.DocumentFromConfig(s.geo.Configuration()))
}

func (s *GrpcServer) RequestAuthorization(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.geo.RequestAuthorization()
	return toStruct(map[string]any{"status": s.geo.AuthorizationStatus()})
}

func (s *GrpcServer) StopObserving(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	s.geo.StopObserving()
	return &structpb.Struct{}, nil
}

func unaryMethod(name string, call func(GeolocationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(GeolocationServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var watchStreamDesc = grpc.StreamDesc{
	StreamName:    "WatchPosition",
	ServerStreams: true,
	Handler: func(srv any, stream grpc.ServerStream) error {
		in := new(structpb.Struct)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return srv.(GeolocationServer).WatchPosition(in, stream)
	},
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeolocationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetCurrentPosition", GeolocationServer.GetCurrentPosition),
		unaryMethod("SetConfiguration", GeolocationServer.SetConfiguration),
		unaryMethod("RequestAuthorization", GeolocationServer.RequestAuthorization),
		unaryMethod("StopObserving", GeolocationServer.StopObserving),
	},
	Streams:  []grpc.StreamDesc{watchStreamDesc},
	Metadata: "geoloc/v1/geolocation.proto",
}
