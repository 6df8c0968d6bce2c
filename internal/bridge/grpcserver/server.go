// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package grpcserver serves a bridge.Facade over gRPC on a unix socket so a
// separate process can drive the engine without spawning it itself. Only the
// methods declared in package wire are reachable; every call is logged.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"timemachine/cli/internal/bridge"
	"timemachine/cli/internal/bridge/wire"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EventBuffer is how many events a slow subscriber may lag behind before
// further events are dropped for it.
const EventBuffer = 256

// Server exposes a façade over gRPC.
type Server struct {
	facade bridge.Facade
	log    *pterm.Logger
	grpc   *grpc.Server

	quit     chan struct{}
	stopOnce sync.Once
}

// New creates a server for f. Extra options are appended after the
// allowlist and logging interceptors.
func New(f bridge.Facade, log *pterm.Logger, opts ...grpc.ServerOption) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{facade: f, log: log, quit: make(chan struct{})}
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.unaryGuard),
		grpc.ChainStreamInterceptor(s.streamGuard),
	}, opts...)
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("bridge listening", s.log.Args("address", lis.Addr().String()))
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop ends open subscriptions, waits for in-flight calls, then closes every
// listener.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	s.grpc.GracefulStop()
}

// Listen opens a unix socket at path readable only by the current user. A
// stale socket file from a previous run is removed first.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		lis.Close()
		return nil, err
	}
	return lis, nil
}

func (s *Server) unaryGuard(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !wire.Methods[info.FullMethod] {
		s.log.Warn("rejected undeclared bridge method", s.log.Args("method", info.FullMethod))
		return nil, status.Errorf(codes.PermissionDenied, "method %s is not part of the bridge", info.FullMethod)
	}
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Warn("bridge call failed", s.log.Args("method", info.FullMethod, "error", err.Error()))
	} else {
		s.log.Debug("bridge call", s.log.Args("method", info.FullMethod))
	}
	return resp, wire.ToStatus(err)
}

func (s *Server) streamGuard(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if !wire.Methods[info.FullMethod] {
		s.log.Warn("rejected undeclared bridge stream", s.log.Args("method", info.FullMethod))
		return status.Errorf(codes.PermissionDenied, "method %s is not part of the bridge", info.FullMethod)
	}
	return wire.ToStatus(handler(srv, ss))
}

func (s *Server) executeCore(ctx context.Context, in *structpb.ListValue) (*structpb.Struct, error) {
	argv, err := wire.FromStrings(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "argv: %v", err)
	}
	res, callErr := s.facade.ExecuteCore(ctx, argv)
	if errs.Is(callErr, errs.Rejected) {
		return nil, callErr
	}
	return wire.EncodeResult(res, callErr)
}

func (s *Server) getBackupProfiles(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	names, err := s.facade.GetBackupProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return wire.Strings(names), nil
}

func (s *Server) selectDirectory(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	dirs, err := s.facade.SelectDirectory(ctx)
	if err != nil {
		return nil, err
	}
	return wire.Strings(dirs), nil
}

func (s *Server) openExternalURL(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ok, err := s.facade.OpenExternalURL(ctx, in.GetValue())
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) triggerBackup(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.facade.TriggerBackup(ctx, in.GetValue()); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

// subscribe registers on the façade for the requested kinds, confirms with a
// header once registered, then relays events until the client goes away.
// Delivery to the stream never blocks the publisher: a full buffer drops.
func (s *Server) subscribe(in *structpb.ListValue, out grpc.ServerStreamingServer[structpb.Struct]) error {
	names, err := wire.FromStrings(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "kinds: %v", err)
	}
	kinds, err := parseKinds(names)
	if err != nil {
		return err
	}

	events := make(chan stream.Event, EventBuffer)
	relay := func(ev stream.Event) {
		select {
		case events <- ev:
		default:
			s.log.Warn("subscriber lagging, dropping event", s.log.Args("kind", ev.Kind.String(), "request", ev.RequestID))
		}
	}
	for _, k := range kinds {
		sub := s.subscribeKind(k, relay)
		defer sub.Close()
	}
	if err := out.SendHeader(metadata.Pairs("subscribed", "true")); err != nil {
		return err
	}

	ctx := out.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case ev := <-events:
			msg, err := wire.EncodeEvent(ev)
			if err != nil {
				s.log.Warn("dropping unencodable event", s.log.Args("kind", ev.Kind.String(), "error", err.Error()))
				continue
			}
			if err := out.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Server) subscribeKind(k stream.Kind, fn stream.Handler) *stream.Subscription {
	switch k {
	case stream.KindStdout:
		return s.facade.OnOutput(fn)
	case stream.KindStderr:
		return s.facade.OnError(fn)
	case stream.KindProgress:
		return s.facade.OnProgress(fn)
	case stream.KindCompletion:
		return s.facade.OnCompletion(fn)
	default:
		return s.facade.OnTriggerBackup(fn)
	}
}

var allKinds = []stream.Kind{stream.KindStdout, stream.KindStderr, stream.KindProgress, stream.KindCompletion, stream.KindTrigger}

func parseKinds(names []string) ([]stream.Kind, error) {
	if len(names) == 0 {
		return allKinds, nil
	}
	kinds := make([]stream.Kind, 0, len(names))
	for _, n := range names {
		k, ok := stream.ParseKind(n)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
