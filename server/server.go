// Package server accepts one JSON request per connection and dispatches it
// to the marketplace.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mdlayher/vsock"
	"golang.org/x/time/rate"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/market"
	"github.com/cloudx-io/nftauction/metrics"
	"github.com/cloudx-io/nftauction/receipt"
)

const (
	DefaultReadTimeout = 30 * time.Second

	// maxRequestBytes bounds a single request body.
	maxRequestBytes = 1 << 20
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Market *market.Market
	Signer *receipt.Signer

	MaxWorkers  int
	ReadTimeout time.Duration

	// RateLimit is connections per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Market == nil {
		return errors.New("market is required")
	}
	if cfg.Signer == nil {
		return errors.New("receipt signer is required")
	}
	if cfg.MaxWorkers <= 0 {
		return errors.New("max workers must be positive")
	}
	if cfg.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = max(1, int(cfg.RateLimit))
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Server struct {
	log         *slog.Logger
	clock       clockwork.Clock
	market      *market.Market
	signer      *receipt.Signer
	readTimeout time.Duration

	semaphore chan struct{}
	limiter   *rate.Limiter

	wg sync.WaitGroup
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	return &Server{
		log:         cfg.Logger,
		clock:       cfg.Clock,
		market:      cfg.Market,
		signer:      cfg.Signer,
		readTimeout: cfg.ReadTimeout,
		semaphore:   make(chan struct{}, cfg.MaxWorkers),
		limiter:     limiter,
	}, nil
}

// Listen opens "tcp://host:port" or "vsock://port". A bare host:port is TCP.
func Listen(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "vsock://"):
		port, err := strconv.ParseUint(strings.TrimPrefix(addr, "vsock://"), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vsock port in %q: %w", addr, err)
		}
		ln, err := vsock.Listen(uint32(port), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return ln, nil
	default:
		ln, err := net.Listen("tcp", strings.TrimPrefix(addr, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("failed to create tcp listener: %w", err)
		}
		return ln, nil
	}
}

// Serve accepts connections until ctx is cancelled, then waits for in-flight
// requests to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("server: failed to close listener", "error", err)
		}
	})
	defer stop()
	defer s.wg.Wait()

	s.log.Info("server: listening",
		"addr", listener.Addr().String(),
		"max_workers", cap(s.semaphore))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("server: stopped accepting connections")
				return nil
			}
			s.log.Error("server: failed to accept connection", "error", err)
			continue
		}

		if !s.limiter.Allow() {
			s.reject(conn, "rate_limited")
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case s.semaphore <- struct{}{}:
			s.wg.Add(1)
			metrics.WorkersBusy.Inc()
			go func(c net.Conn) {
				defer func() {
					metrics.WorkersBusy.Dec()
					<-s.semaphore
					s.wg.Done()
				}()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			s.reject(conn, "pool_full")
		}
	}
}

func (s *Server) reject(conn net.Conn, reason string) {
	metrics.ConnectionsRejectedTotal.WithLabelValues(reason).Inc()
	s.log.Info("server: rejecting connection", "reason", reason, "remote", conn.RemoteAddr())
	if err := conn.Close(); err != nil {
		s.log.Error("server: failed to close rejected connection", "error", err)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("server: panic recovered in handleConnection", "panic", r)
		}
		if err := conn.Close(); err != nil {
			s.log.Error("server: failed to close connection", "error", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(conn, maxRequestBytes+1)); err != nil {
		s.log.Error("server: failed to read request", "error", err)
		return
	}
	if buf.Len() > maxRequestBytes {
		s.writeResponse(conn, auctionapi.NewErrorResponse(auctionapi.Header{}, errors.New("request too large")))
		return
	}

	s.writeResponse(conn, s.Handle(ctx, buf.Bytes()))
}

func (s *Server) writeResponse(conn net.Conn, response *auctionapi.Response) {
	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		s.log.Error("server: failed to encode response", "error", err)
	}
}

// Handle decodes and executes a single request. It never returns nil.
func (s *Server) Handle(ctx context.Context, data []byte) (response *auctionapi.Response) {
	start := s.clock.Now()

	var header auctionapi.Header
	if err := json.Unmarshal(data, &header); err != nil {
		s.log.Error("server: failed to decode base request", "error", err)
		metrics.RequestsTotal.WithLabelValues("invalid", "error").Inc()
		return auctionapi.NewErrorResponse(header, fmt.Errorf("failed to decode request: %w", err))
	}
	if header.RequestID == "" {
		header.RequestID = uuid.NewString()
	}

	log := s.log.With("type", header.Type, "request_id", header.RequestID)
	log.Debug("server: received request", "caller", header.Caller)

	defer func() {
		if r := recover(); r != nil {
			log.Error("server: panic recovered while handling request", "panic", r)
			response = auctionapi.NewErrorResponse(header, errors.New("internal error"))
		}

		elapsed := s.clock.Since(start)
		response.ProcessingTime = elapsed.Milliseconds()

		status := "ok"
		if !response.Success {
			status = "error"
		}
		label := header.Type
		if !isKnownType(label) {
			label = "unknown"
		}
		metrics.RequestsTotal.WithLabelValues(label, status).Inc()
		metrics.RequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}()

	response, err := s.dispatch(ctx, header, data)
	if err != nil {
		log.Info("server: request rejected", "error", err)
		return auctionapi.NewErrorResponse(header, err)
	}
	log.Debug("server: request processed", "message", response.Message)
	return response
}
