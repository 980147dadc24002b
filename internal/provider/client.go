package provider

import "context"

// Operations a vendor client can perform.
const (
	OperationChat        = "chat"
	OperationCompletions = "completions"
	OperationEmbeddings  = "embeddings"
)

// Request is a vendor-neutral proxied call. Model carries the bare
// model name, already stripped of its vendor prefix.
type Request struct {
	Operation string
	Model     string
	Payload   map[string]any
	MaxTokens int64
}

// Usage is the vendor-reported token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func (u Usage) Total() int64 { return u.InputTokens + u.OutputTokens }

// Response is a completed upstream call. Vendor names who actually
// served it, which differs from the requested vendor after failover.
type Response struct {
	Vendor string
	Model  string
	Body   []byte
	Usage  Usage
}

// Client speaks one vendor's wire protocol.
type Client interface {
	Vendor() string
	Models() []string
	Do(ctx context.Context, req *Request) (*Response, error)
}
