package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/transport"
)

// MessagePath is the route inbound messages are posted to
const MessagePath = "/overlay/messages/{kind}"

// HeaderPrefix namespaces overlay headers on the wire
const HeaderPrefix = "X-Overlay-"

var wireHeaders = []string{
	transport.HeaderCommunity,
	transport.HeaderFrom,
	transport.HeaderCorrelationID,
	transport.HeaderProtocol,
}

// Transport sends with an http.Client and listens with an http.Server
type Transport struct {
	config *Config
	client *http.Client
	logger logging.Logger

	// forwards handed off after answering 202
	inflight sync.WaitGroup

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	stop     context.CancelFunc
}

// New creates an HTTP transport
func New(config *Config, logger logging.Logger) (*Transport, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HTTP config: %w", err)
	}

	return &Transport{
		config: config,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        config.MaxConnections,
				MaxIdleConnsPerHost: max(config.MaxConnections/10, 1),
				IdleConnTimeout:     config.KeepAlive,
			},
			Timeout: config.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logging.Component(logger, "transport.http"),
	}, nil
}

// Name returns "http"
func (t *Transport) Name() string { return Name }

// Send posts msg to the base URL in address
func (t *Transport) Send(ctx context.Context, address string, msg *transport.Message) error {
	url := strings.TrimRight(address, "/") + "/overlay/messages/" + string(msg.Kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Body))
	if err != nil {
		return errors.CommunicationError("failed to create HTTP request", err).WithContext("address", address)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	for _, h := range wireHeaders {
		if v := msg.Header(h); v != "" {
			req.Header.Set(HeaderPrefix+h, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.CommunicationError("HTTP request failed", err).WithContext("address", address)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.CommunicationError(fmt.Sprintf("peer answered %d", resp.StatusCode), nil).
			WithContext("address", address).
			WithContext("body", strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Router builds the inbound routes for handler
func (t *Transport) Router(handler transport.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(MessagePath, t.receive(handler)).Methods(http.MethodPost)
	return r
}

func (t *Transport) receive(handler transport.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := transport.Kind(mux.Vars(r)["kind"])
		if !kind.Valid() {
			http.Error(w, fmt.Sprintf("unknown message kind %q", kind), http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.config.MaxBodySize))
		if err != nil {
			http.Error(w, "message body too large", http.StatusRequestEntityTooLarge)
			return
		}

		msg := transport.NewMessage(kind, body)
		for _, h := range wireHeaders {
			if v := r.Header.Get(HeaderPrefix + h); v != "" {
				msg.Headers[h] = v
			}
		}

		// Forwards are answered once read; the handler runs detached and logs.
		if kind == transport.KindForward {
			ctx := context.WithoutCancel(r.Context())
			t.inflight.Add(1)
			go func() {
				defer t.inflight.Done()
				if err := handler(ctx, msg); err != nil {
					t.logHandlerError(msg, err)
				}
			}()
			w.WriteHeader(http.StatusAccepted)
			return
		}

		if err := handler(r.Context(), msg); err != nil {
			t.logHandlerError(msg, err)
			status := http.StatusInternalServerError
			if errors.IsType(err, errors.ErrTypeFormat) || errors.IsType(err, errors.ErrTypeValidation) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (t *Transport) logHandlerError(msg *transport.Message, err error) {
	t.logger.Warn("Inbound message handler failed",
		logging.String("kind", string(msg.Kind)),
		logging.String("from", msg.Header(transport.HeaderFrom)),
		logging.Err(err),
	)
}

// Listen binds ListenAddress and serves until ctx is done or Shutdown
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return errors.ConnectionError("HTTP transport already listening", nil)
	}

	ln, err := net.Listen("tcp", t.config.ListenAddress)
	if err != nil {
		return errors.ConnectionError(fmt.Sprintf("listen on %s", t.config.ListenAddress), err)
	}

	server := &http.Server{
		Handler:      t.Router(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	listenCtx, stop := context.WithCancel(ctx)
	t.server, t.listener, t.stop = server, ln, stop

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.logger.Error("HTTP transport stopped", err)
		}
	}()
	go func() {
		<-listenCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.shutdown(shutdownCtx, server)
	}()

	t.logger.Info("HTTP transport listening", logging.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or "" before Listen
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Shutdown stops the listener and closes idle client connections
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	server := t.server
	t.mu.Unlock()

	t.client.CloseIdleConnections()
	if server == nil {
		return nil
	}
	return t.shutdown(ctx, server)
}

func (t *Transport) shutdown(ctx context.Context, server *http.Server) error {
	t.mu.Lock()
	if t.server != server {
		t.mu.Unlock()
		return nil
	}
	stop := t.stop
	t.server, t.listener, t.stop = nil, nil, nil
	t.mu.Unlock()

	stop()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	return t.waitInflight(ctx)
}

// waitInflight waits for accepted forwards to finish, or for ctx
func (t *Transport) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.TimeoutError("waiting for accepted forwards")
	}
}
