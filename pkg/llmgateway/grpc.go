package llmgateway

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/gradeflow/gradeflow/pkg/config"
	"github.com/gradeflow/gradeflow/pkg/coreerrors"
	llmv1 "github.com/gradeflow/gradeflow/proto/llmv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCGateway implements Gateway by calling the LLM service over gRPC. Kept
// on an insecure (plaintext) channel the same way the teacher's
// GRPCLLMClient does: the service is expected to run as a sidecar.
type GRPCGateway struct {
	conn   *grpc.ClientConn
	client llmv1.LLMServiceClient
}

// NewGRPCGateway dials the LLM service.
func NewGRPCGateway(addr string) (*GRPCGateway, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM gateway client for %s: %w", addr, err)
	}
	return &GRPCGateway{conn: conn, client: llmv1.NewLLMServiceClient(conn)}, nil
}

// TextComplete performs a text-only completion.
func (g *GRPCGateway) TextComplete(ctx context.Context, req *Request) (*Completion, error) {
	return g.complete(ctx, req, nil)
}

// VisionComplete attaches rasterized page images to the request.
func (g *GRPCGateway) VisionComplete(ctx context.Context, req *Request) (*Completion, error) {
	return g.complete(ctx, req, req.Images)
}

// Close releases the gRPC connection.
func (g *GRPCGateway) Close() error {
	return g.conn.Close()
}

// complete drives the exponential-backoff transport retry loop, bounded at
// 3 attempts. This loop retries both a raw gRPC/transport error (network,
// timeout, 5xx/429 surfaced as a status error) and a provider-sent
// ErrorMessage with Retryable=true, per spec.md §4.1. A malformed response
// is handed back to the caller unretried — that is the repair loop's job,
// in repair.go, kept deliberately separate (a schema mismatch is not fixed
// by calling the same provider again with the same prompt).
func (g *GRPCGateway) complete(ctx context.Context, req *Request, images []InlineImage) (*Completion, error) {
	protoReq := toProtoRequest(req, images)

	var completion *Completion
	operation := func() error {
		resp, err := g.client.Complete(ctx, protoReq)
		if err != nil {
			return fmt.Errorf("%w: %v", coreerrors.ErrLLMUnavailable, err)
		}
		if resp.ErrorMessage != "" {
			if resp.Retryable {
				return fmt.Errorf("%w: %s", coreerrors.ErrLLMUnavailable, resp.ErrorMessage)
			}
			return backoff.Permanent(fmt.Errorf("%w: %s", coreerrors.ErrLLMUnavailable, resp.ErrorMessage))
		}
		completion = &Completion{
			Raw: resp.Text,
			Usage: TokenUsage{
				InputTokens:  int(resp.Usage.GetInputTokens()),
				OutputTokens: int(resp.Usage.GetOutputTokens()),
				TotalTokens:  int(resp.Usage.GetTotalTokens()),
			},
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return completion, nil
}

func toProtoRequest(req *Request, images []InlineImage) *llmv1.CompleteRequest {
	out := &llmv1.CompleteRequest{
		RunId:       req.RunID,
		TaskId:      req.TaskID,
		Temperature: req.Temperature,
		Messages:    toProtoMessages(req.Messages),
	}
	if req.Provider != nil {
		out.LlmConfig = toProtoLLMConfig(req.Provider)
	}
	for _, img := range images {
		out.Images = append(out.Images, &llmv1.InlineImage{Data: img.Data, MimeType: img.MimeType})
	}
	return out
}

func toProtoMessages(msgs []Message) []*llmv1.ConversationMessage {
	out := make([]*llmv1.ConversationMessage, len(msgs))
	for i, m := range msgs {
		out[i] = &llmv1.ConversationMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// toProtoLLMConfig forwards env var *names*, not values — the LLM service
// process resolves its own credentials from its own environment, the same
// boundary the teacher draws for ApiKeyEnv.
func toProtoLLMConfig(cfg *config.LLMProviderConfig) *llmv1.LLMConfig {
	return &llmv1.LLMConfig{
		Provider:        string(cfg.Type),
		Model:           cfg.Model,
		ApiKeyEnv:       cfg.APIKeyEnv,
		ProjectEnv:      cfg.ProjectEnv,
		LocationEnv:     cfg.LocationEnv,
		BaseUrl:         cfg.BaseURL,
		MaxOutputTokens: clampToInt32(cfg.MaxOutputTokens),
	}
}

func clampToInt32(v int) int32 {
	const maxInt32 = 1<<31 - 1
	if v > maxInt32 {
		return maxInt32
	}
	return int32(v)
}
