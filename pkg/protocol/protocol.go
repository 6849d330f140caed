package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC protocol version stamped on every message.
const Version = "2.0"

// MCPVersion is the MCP protocol revision advertised during initialization.
const MCPVersion = "2025-03-26"

// MCP method names proxied by the gateway.
const (
	MethodInitialize           = "initialize"
	MethodInitializedNotify    = "notifications/initialized"
	MethodPing                 = "ping"
	MethodToolsList            = "tools/list"
	MethodToolsCall            = "tools/call"
	MethodResourcesList        = "resources/list"
	MethodResourcesRead        = "resources/read"
	MethodResourcesSubscribe   = "resources/subscribe"
	MethodResourcesUnsubscribe = "resources/unsubscribe"
	MethodPromptsList          = "prompts/list"
	MethodPromptsGet           = "prompts/get"
	MethodLoggingSetLevel      = "logging/setLevel"
	MethodCompletionComplete   = "completion/complete"
)

// ID is a JSON-RPC request identifier: a number or a string on the wire.
type ID struct {
	str   string
	num   int64
	isStr bool
}

// NumberID returns an ID that marshals as a JSON number.
func NumberID(n int64) ID { return ID{num: n} }

// StringID returns an ID that marshals as a JSON string.
func StringID(s string) ID { return ID{str: s, isStr: true} }

// String renders the ID for log output.
func (id ID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// Equal reports whether two IDs are the same wire value.
func (id ID) Equal(other ID) bool {
	return id.isStr == other.isStr && id.str == other.str && id.num == other.num
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		id.isStr = true
		id.num = 0
		return json.Unmarshal(data, &id.str)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("protocol: invalid request id %s: %w", data, err)
	}
	*id = ID{num: n}
	return nil
}

// Request is a JSON-RPC request or, when ID is nil, a notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *ID    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a call expecting a response.
func NewRequest(id ID, method string, params any) *Request {
	return &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification builds a fire-and-forget message with no ID.
func NewNotification(method string, params any) *Request {
	return &Request{JSONRPC: Version, Method: method, Params: params}
}

// IsNotification reports whether no response is expected.
func (r *Request) IsNotification() bool { return r.ID == nil }

// RPCError is the JSON-RPC error object reported by an upstream.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response carries either a result or an error, never both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Valid reports whether the response satisfies the result-XOR-error rule.
func (r *Response) Valid() bool {
	return (r.Result != nil) != (r.Error != nil)
}

// DecodeResult unmarshals the result payload into out, rejecting error
// responses and responses with no result.
func (r *Response) DecodeResult(out any) error {
	if r.Error != nil {
		return r.Error
	}
	if r.Result == nil {
		return fmt.Errorf("protocol: response has no result")
	}
	return json.Unmarshal(r.Result, out)
}
