package grpcserver

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/matching-service/internal/ranking"
)

// Client calls a remote MatchingService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Recompute asks the remote service to rank pool against jobID.
func (c *Client) Recompute(ctx context.Context, jobID string, pool []string, opts ...grpc.CallOption) (*ranking.Ranking, error) {
	items := make([]any, len(pool))
	for i, id := range pool {
		items[i] = id
	}
	in, err := structpb.NewStruct(map[string]any{"jobId": jobID, "candidatePool": items})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, methodRecompute, in, opts...)
}

// GetRanking reads the stored ranking of jobID.
func (c *Client) GetRanking(ctx context.Context, jobID string, opts ...grpc.CallOption) (*ranking.Ranking, error) {
	in, err := structpb.NewStruct(map[string]any{"jobId": jobID})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, methodGetRanking, in, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*ranking.Ranking, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out.AsMap())
	if err != nil {
		return nil, err
	}
	var r ranking.Ranking
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
