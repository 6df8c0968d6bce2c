// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package grpcclient provides a gRPC-backed implementation of bridge.Facade.
// It talks to a grpcserver over a unix socket; each subscription opens its
// own Subscribe stream and relays events until the handle is closed.
package grpcclient

import (
	"context"
	"errors"
	"io"
	"sync"

	"timemachine/cli/internal/bridge/model"
	"timemachine/cli/internal/bridge/wire"
	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
	"timemachine/cli/internal/stream"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client implements bridge.Facade against a remote bridge.
type Client struct {
	conn *grpc.ClientConn
	log  *pterm.Logger

	mu     sync.Mutex
	subs   map[*stream.Subscription]struct{}
	closed bool
}

// Dial connects to the bridge socket at path. The connection is lazy: an
// absent server surfaces as Unavailable on the first call.
func Dial(path string, log *pterm.Logger, opts ...grpc.DialOption) (*Client, error) {
	return New("unix:"+path, log, opts...)
}

// New connects to target with insecure transport credentials; the socket's
// file permissions are the access control.
func New(target string, log *pterm.Logger, opts ...grpc.DialOption) (*Client, error) {
	if log == nil {
		log = logging.Discard()
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "connect to bridge", err)
	}
	return &Client{conn: conn, log: log, subs: make(map[*stream.Subscription]struct{})}, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return wire.FromStatus(c.conn.Invoke(ctx, wire.FullMethod(method), in, out))
}

func (c *Client) ExecuteCore(ctx context.Context, argv []string) (model.CommandResult, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, wire.MethodExecuteCore, wire.Strings(argv), out); err != nil {
		return model.CommandResult{}, err
	}
	return wire.DecodeResult(out)
}

func (c *Client) GetBackupProfiles(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, wire.MethodGetBackupProfiles, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return wire.FromStrings(out)
}

func (c *Client) SelectDirectory(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, wire.MethodSelectDirectory, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return wire.FromStrings(out)
}

func (c *Client) OpenExternalURL(ctx context.Context, rawURL string) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, wire.MethodOpenExternalURL, wrapperspb.String(rawURL), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) TriggerBackup(ctx context.Context, profileID string) error {
	return c.invoke(ctx, wire.MethodTriggerBackup, wrapperspb.String(profileID), new(emptypb.Empty))
}

func (c *Client) OnOutput(fn stream.Handler) *stream.Subscription {
	return c.subscribe(fn, stream.KindStdout)
}

func (c *Client) OnError(fn stream.Handler) *stream.Subscription {
	return c.subscribe(fn, stream.KindStderr)
}

func (c *Client) OnProgress(fn stream.Handler) *stream.Subscription {
	return c.subscribe(fn, stream.KindProgress)
}

func (c *Client) OnCompletion(fn stream.Handler) *stream.Subscription {
	return c.subscribe(fn, stream.KindCompletion)
}

func (c *Client) OnTriggerBackup(fn stream.Handler) *stream.Subscription {
	return c.subscribe(fn, stream.KindTrigger)
}

// Subscribe relays events of the given kinds (all kinds when none are given)
// to fn. It returns once the server has registered the listener, so events
// published afterwards are delivered. If the stream cannot be opened the
// failure is logged and the returned handle is inert.
func (c *Client) Subscribe(fn stream.Handler, kinds ...stream.Kind) *stream.Subscription {
	return c.subscribe(fn, kinds...)
}

func (c *Client) subscribe(fn stream.Handler, kinds ...stream.Kind) *stream.Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	var sub *stream.Subscription
	sub = stream.NewSubscription(func() {
		cancel()
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return sub
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	cs, err := c.conn.NewStream(ctx, &wire.SubscribeStream, wire.FullMethod(wire.MethodSubscribe))
	if err == nil {
		err = cs.SendMsg(wire.Strings(names))
	}
	if err == nil {
		err = cs.CloseSend()
	}
	if err == nil {
		err = awaitRegistration(cs)
	}
	if err != nil {
		c.log.Warn("bridge subscription failed", c.log.Args("kinds", names, "error", wire.FromStatus(err).Error()))
		sub.Close()
		return sub
	}
	x := &grpc.GenericClientStream[structpb.ListValue, structpb.Struct]{ClientStream: cs}
	go c.receiveLoop(x, fn)
	return sub
}

// awaitRegistration blocks until the server confirms the listener with a
// header. A stream that ends without one carries its status in RecvMsg.
func awaitRegistration(cs grpc.ClientStream) error {
	md, err := cs.Header()
	if err != nil || md != nil {
		return err
	}
	if err := cs.RecvMsg(new(structpb.Struct)); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return errors.New("subscription closed before it was registered")
}

func (c *Client) receiveLoop(x grpc.ServerStreamingClient[structpb.Struct], fn stream.Handler) {
	for {
		msg, err := x.Recv()
		if err != nil {
			// Normal close or our own cancel; anything else is worth a line.
			if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
				c.log.Warn("bridge event stream ended", c.log.Args("error", wire.FromStatus(err).Error()))
			}
			return
		}
		ev, err := wire.DecodeEvent(msg)
		if err != nil {
			c.log.Warn("dropping bridge event", c.log.Args("error", err.Error()))
			continue
		}
		fn(ev)
	}
}

// Close ends every subscription and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*stream.Subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
	return c.conn.Close()
}
