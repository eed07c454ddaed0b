// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scorer

import (
	"context"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/gorse-io/reelrecs/protocol"
	"github.com/juju/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote scoring service over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	client  protocol.MLScorerClient
	address string
	timeout time.Duration
}

// NewClient creates a client. The connection is established lazily on the first call.
func NewClient(cfg config.ScorerConfig, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, errors.Annotatef(err, "connect to scorer %s", cfg.Address)
	}
	return &Client{
		conn:    conn,
		client:  protocol.NewMLScorerClient(conn),
		address: cfg.Address,
		timeout: cfg.Timeout,
	}, nil
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Score sends all feature records in one request. Any failure is a RemoteError.
func (c *Client) Score(ctx context.Context, userId dataset.UserId, features []logics.CandidateFeatures) ([]float64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.client.ScoreCandidates(ctx, &protocol.ScoreRequest{
		UserId:   userId,
		Features: features,
	})
	if err != nil {
		log.Logger().Error("failed to score candidates",
			zap.String("address", c.address),
			zap.Uint32("user_id", userId),
			zap.Error(err))
		return nil, &RemoteError{Err: err}
	}
	if err = checkLength(len(features), resp.Scores); err != nil {
		log.Logger().Error("invalid scoring response",
			zap.String("address", c.address),
			zap.Uint32("user_id", userId),
			zap.Error(err))
		return nil, err
	}
	return resp.Scores, nil
}
