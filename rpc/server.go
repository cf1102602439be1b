// Package rpc serves the node's JSON-RPC 2.0 interface over HTTP.
package rpc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/node"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

const (
	Path = "/rpc"

	maxRequestBytes = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Backend is the node surface the RPC methods use.
type Backend interface {
	ChainInfo() (node.Info, error)
	GetBlockByHeight(height uint64) (*types.Block, error)
	SubmitRawTransaction(raw []byte) (types.Hash, error)
	View(fn func(r statedb.Reader) error) error
}

type Server struct {
	backend Backend
	logger  log.Logger
	engine  *gin.Engine
}

func NewServer(backend Backend, logger log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		backend: backend,
		logger:  logger,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.engine.POST(Path, s.handle)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("RPC server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "rpc listen on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "rpc shutdown")
		}
		s.logger.Info("RPC server stopped")
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("RPC request", "remote", c.ClientIP(), "status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func (s *Server) handle(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
	if err != nil {
		s.write(c, errorResponse(nil, newError(CodeParseError, "cannot read request body")))
		return
	}

	if !json.Valid(body) {
		s.write(c, errorResponse(nil, newError(CodeParseError, "parse error")))
		return
	}
	// Valid JSON that is not a request object, batches included.
	var req Request
	if trimmed := bytes.TrimSpace(body); trimmed[0] != '{' || json.Unmarshal(trimmed, &req) != nil {
		s.write(c, errorResponse(nil, newError(CodeInvalidRequest, "invalid request")))
		return
	}
	s.write(c, s.call(&req))
}

func (s *Server) call(req *Request) *Response {
	if req.Version != Version || req.Method == "" {
		return errorResponse(req.ID, newError(CodeInvalidRequest, "invalid request"))
	}

	handler, ok := methods[req.Method]
	if !ok {
		return errorResponse(req.ID, newError(CodeMethodNotFound, "method not found"))
	}

	result, rpcErr := handler(s, req.Params)
	if rpcErr != nil {
		s.logger.Debug("RPC call failed", "method", req.Method, "code", rpcErr.Code, "err", rpcErr.Message)
		return errorResponse(req.ID, rpcErr)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Encode RPC result", "method", req.Method, "err", err)
		return errorResponse(req.ID, newError(CodeInternalError, "internal error"))
	}
	return &Response{Version: Version, Result: raw, ID: normalizeID(req.ID)}
}

func (s *Server) write(c *gin.Context, resp *Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Encode RPC response", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
