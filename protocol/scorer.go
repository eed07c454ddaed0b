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

package protocol

import (
	"context"

	"github.com/gorse-io/reelrecs/logics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	MLScorerServiceName           = "recommendations.MLScorer"
	MLScorer_ScoreCandidates_Name = "/recommendations.MLScorer/ScoreCandidates"
)

type ScoreRequest struct {
	UserId   uint32                     `json:"user_id"`
	Features []logics.CandidateFeatures `json:"features"`
}

// ScoreResponse carries one score per feature record, in request order.
type ScoreResponse struct {
	Scores []float64 `json:"scores"`
}

type MLScorerClient interface {
	ScoreCandidates(ctx context.Context, in *ScoreRequest, opts ...grpc.CallOption) (*ScoreResponse, error)
}

type mlScorerClient struct {
	cc grpc.ClientConnInterface
}

func NewMLScorerClient(cc grpc.ClientConnInterface) MLScorerClient {
	return &mlScorerClient{cc}
}

func (c *mlScorerClient) ScoreCandidates(ctx context.Context, in *ScoreRequest, opts ...grpc.CallOption) (*ScoreResponse, error) {
	out := new(ScoreResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MLScorer_ScoreCandidates_Name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type MLScorerServer interface {
	ScoreCandidates(context.Context, *ScoreRequest) (*ScoreResponse, error)
}

// UnimplementedMLScorerServer can be embedded to have forward compatible implementations.
type UnimplementedMLScorerServer struct{}

func (UnimplementedMLScorerServer) ScoreCandidates(context.Context, *ScoreRequest) (*ScoreResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ScoreCandidates not implemented")
}

func RegisterMLScorerServer(s grpc.ServiceRegistrar, srv MLScorerServer) {
	s.RegisterService(&MLScorer_ServiceDesc, srv)
}

func _MLScorer_ScoreCandidates_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MLScorerServer).ScoreCandidates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MLScorer_ScoreCandidates_Name,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MLScorerServer).ScoreCandidates(ctx, req.(*ScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// MLScorer_ServiceDesc is the grpc.ServiceDesc for the MLScorer service.
var MLScorer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: MLScorerServiceName,
	HandlerType: (*MLScorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ScoreCandidates",
			Handler:    _MLScorer_ScoreCandidates_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recommendations.proto",
}
