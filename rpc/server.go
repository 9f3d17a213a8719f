// Package rpc exposes the casebook session over newline-delimited JSON-RPC
// 2.0, the wire protocol a desktop front end drives the core with.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Handler executes one registered method.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server dispatches JSON-RPC 2.0 messages, one per line.
type Server struct {
	methods map[string]Handler
	input   io.Reader
	output  io.Writer
	log     *zap.Logger
	mu      sync.Mutex
}

type jsonrpcRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  interface{}      `json:"result,omitempty"`
	Error   *jsonrpcError    `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeAppError       = -32000
)

// NewServer creates a server reading from stdin and writing to stdout.
func NewServer(log *zap.Logger) *Server {
	return NewServerWithIO(os.Stdin, os.Stdout, log)
}

// NewServerWithIO creates a server with custom I/O for testing.
func NewServerWithIO(in io.Reader, out io.Writer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		methods: make(map[string]Handler),
		input:   in,
		output:  out,
		log:     log,
	}
}

// Register adds a method to the dispatch table.
func (s *Server) Register(name string, h Handler) {
	s.methods[name] = h
}

// Run processes messages until EOF or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, codeParseError, "parse error", errorData{Kind: KindValidation})
			continue
		}
		s.handle(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req jsonrpcRequest) {
	handler, ok := s.methods[req.Method]
	if !ok {
		s.log.Warn("unknown method", zap.String("method", req.Method))
		s.sendError(req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
		return
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		s.log.Warn("method failed",
			zap.String("method", req.Method),
			zap.Error(err))
		s.sendError(req.ID, codeAppError, err.Error(), dataFor(err))
		return
	}

	// Notifications carry no id and expect no response.
	if req.ID == nil {
		return
	}
	s.sendResult(req.ID, result)
}

func (s *Server) sendResult(id *json.RawMessage, result interface{}) {
	s.send(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id *json.RawMessage, code int, message string, data interface{}) {
	s.send(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: message, Data: data},
	})
}

func (s *Server) send(resp jsonrpcResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := s.output.Write(data); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
