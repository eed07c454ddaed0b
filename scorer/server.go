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
	"math"
	"net"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/protocol"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server exposes a Scorer as the MLScorer gRPC service.
type Server struct {
	protocol.UnimplementedMLScorerServer
	scorer     Scorer
	grpcServer *grpc.Server
}

func NewServer(scorer Scorer) *Server {
	s := &Server{scorer: scorer}
	s.grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(math.MaxInt32),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(logInterceptor))
	protocol.RegisterMLScorerServer(s.grpcServer, s)
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	log.Logger().Info("start scoring server", zap.String("address", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.Stop()
}

func (s *Server) ScoreCandidates(ctx context.Context, in *protocol.ScoreRequest) (*protocol.ScoreResponse, error) {
	if len(in.Features) == 0 {
		log.Logger().Warn("received empty features", zap.Uint32("user_id", in.UserId))
		return &protocol.ScoreResponse{Scores: []float64{}}, nil
	}
	scores, err := s.scorer.Score(ctx, in.UserId, in.Features)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &protocol.ScoreResponse{Scores: scores}, nil
}

func logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		log.Logger().Error("failed to handle rpc", zap.String("method", info.FullMethod), zap.Error(err))
	} else {
		log.Logger().Debug("handle rpc", zap.String("method", info.FullMethod), zap.Duration("elapsed", time.Since(start)))
	}
	return resp, err
}
