package rpc

import (
	"github.com/json-iterator/go"
)

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes plus one server-defined code for
// requests the node refused.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeRejected       = -32000
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

var nullID = jsoniter.RawMessage("null")

type Request struct {
	Version string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
	ID      jsoniter.RawMessage `json:"id,omitempty"`
}

// Response carries exactly one of Result and Error. Result holds encoded
// JSON so that a null result is still written out.
type Response struct {
	Version string              `json:"jsonrpc"`
	Result  jsoniter.RawMessage `json:"result,omitempty"`
	Error   *Error              `json:"error,omitempty"`
	ID      jsoniter.RawMessage `json:"id"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func errorResponse(id jsoniter.RawMessage, rpcErr *Error) *Response {
	return &Response{Version: Version, Error: rpcErr, ID: normalizeID(id)}
}

func normalizeID(id jsoniter.RawMessage) jsoniter.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

type ChainInfoResult struct {
	ChainID  string `json:"chain_id"`
	Height   uint64 `json:"height"`
	HeadHash string `json:"head_hash"`
	Pending  int    `json:"pending"`
}

type SendRawTransactionResult struct {
	Accepted bool   `json:"accepted"`
	Hash     string `json:"hash"`
}

type IsArchonResult struct {
	Address  string `json:"address"`
	IsArchon bool   `json:"is_archon"`
}
