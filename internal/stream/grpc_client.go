package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"shelly-exporter/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCClient streams snapshots over a single client stream, reopening it once on send failure.
type GRPCClient struct {
	mu sync.Mutex

	logger      *slog.Logger
	addr        string
	tlsConfig   *tls.Config
	token       string
	method      string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	stream      grpc.ClientStream
	cancel      context.CancelFunc
	dialTimeout time.Duration
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, method string, logger *slog.Logger, opts ...grpc.DialOption) *GRPCClient {
	return &GRPCClient{
		logger:      logger,
		addr:        addr,
		tlsConfig:   tlsCfg,
		token:       token,
		method:      method,
		dialOpts:    opts,
		dialTimeout: 8 * time.Second,
	}
}

func (c *GRPCClient) SendSnapshot(ctx context.Context, snap model.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(ctx); err != nil {
		return err
	}
	if c.stream == nil {
		if err := c.openStreamLocked(); err != nil {
			return err
		}
	}
	if err := c.stream.SendMsg(snap); err != nil {
		c.logger.Warn("grpc snapshot send failed, reopening stream", "error", err)
		c.resetStreamLocked()
		if err2 := c.openStreamLocked(); err2 != nil {
			return fmt.Errorf("reopen snapshot stream: %w", err2)
		}
		if err2 := c.stream.SendMsg(snap); err2 != nil {
			return fmt.Errorf("send snapshot: %w", err2)
		}
	}
	return nil
}

func (c *GRPCClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		_ = c.stream.CloseSend()
	}
	c.resetStreamLocked()
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return closeWithin(ctx, conn.Close)
}

func (c *GRPCClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	}, c.dialOpts...)

	conn, err := grpc.DialContext(dialCtx, c.addr, opts...)
	if err != nil {
		return fmt.Errorf("grpc dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc stream connected", "addr", c.addr)
	return nil
}

// openStreamLocked ties the stream to its own context so that it outlives
// the per-cycle context passed to SendSnapshot.
func (c *GRPCClient) openStreamLocked() error {
	if c.conn == nil {
		return fmt.Errorf("grpc conn is nil")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	if c.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+c.token)
	}
	s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.method)
	if err != nil {
		cancel()
		return fmt.Errorf("open snapshot stream: %w", err)
	}
	c.stream = s
	c.cancel = cancel
	return nil
}

func (c *GRPCClient) resetStreamLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stream = nil
}
