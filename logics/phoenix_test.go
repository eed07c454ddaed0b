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

package logics

import (
	"context"
	"math"
	"testing"

	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PhoenixTestSuite struct {
	suite.Suite
	index   *dataset.Index
	uctx    *UserContext
	phoenix *Phoenix
}

func (suite *PhoenixTestSuite) SetupTest() {
	suite.index = new(indexBuilder).
		user(1, 2).
		movie(1, 1990, dataset.Action).
		movie(2, 1980, dataset.Comedy).
		movie(10, 1992, dataset.Action).
		movie(11, 1960, dataset.Action).
		movie(12, 1985, dataset.Comedy).
		movie(13, 2010, dataset.Drama).
		movie(14, 1991, dataset.Western).
		rate(1, 1, 5).
		rate(1, 2, 3).
		rate(2, 10, 4).
		rate(2, 11, 5).
		rate(2, 12, 3.5).
		rate(2, 13, 2).
		rate(2, 14, 4.5).
		build(suite.T())
	var err error
	suite.uctx, err = BuildUserContext(suite.index, 1)
	suite.Require().NoError(err)
	cfg := config.GetDefaultConfig().Phoenix
	cfg.MinAvgRating = 3.0
	cfg.MinRatingCount = 1
	suite.phoenix = NewPhoenix(suite.index, cfg)
}

func (suite *PhoenixTestSuite) TestGenreBased() {
	candidates := suite.phoenix.GenreBased(suite.uctx, 10)
	suite.Equal([]dataset.MovieId{11, 10, 12}, movieIds(candidates))
	suite.InDelta(5.0, candidates[0].BaseScore, 1e-9)
	suite.InDelta(4.0, candidates[1].BaseScore, 1e-9)
	suite.InDelta(2.1, candidates[2].BaseScore, 1e-9)
	suite.Equal([]dataset.Genre{dataset.Action}, candidates[0].Metadata.MatchedGenres)
	suite.Equal([]dataset.Genre{dataset.Comedy}, candidates[2].Metadata.MatchedGenres)
	suite.Len(suite.phoenix.GenreBased(suite.uctx, 2), 2)
}

func (suite *PhoenixTestSuite) TestPopularityBased() {
	candidates := suite.phoenix.PopularityBased(suite.uctx, 10)
	suite.Equal([]dataset.MovieId{11, 14, 10, 12}, movieIds(candidates))
	suite.InDelta(5*math.Log(2), candidates[0].BaseScore, 1e-9)
	for _, c := range candidates {
		suite.True(c.Metadata.FromPopularity)
	}
}

func (suite *PhoenixTestSuite) TestTemporal() {
	suite.Equal(1990, suite.uctx.PreferredEra)
	candidates := suite.phoenix.Temporal(suite.uctx, 10)
	suite.Equal([]dataset.MovieId{14, 10, 12}, movieIds(candidates))
	suite.InDelta(0.9, candidates[0].BaseScore, 1e-9)
	suite.InDelta(0.8, candidates[1].BaseScore, 1e-9)
	suite.InDelta(0.6, candidates[2].BaseScore, 1e-9)
	for _, c := range candidates {
		suite.True(c.Metadata.FromTemporal)
	}

	// no preferred era
	suite.Empty(suite.phoenix.Temporal(&UserContext{}, 10))
}

func (suite *PhoenixTestSuite) TestGenerate() {
	candidates, err := suite.phoenix.Generate(context.Background(), suite.uctx, 6)
	suite.Require().NoError(err)
	suite.Equal([]dataset.MovieId{11, 10, 12, 14}, movieIds(candidates))
	byId := lo.KeyBy(candidates, func(c Candidate) dataset.MovieId { return c.MovieId })
	suite.InDelta((5.0+5*math.Log(2))/2, byId[11].BaseScore, 1e-9)
	suite.True(byId[11].Metadata.FromPopularity)
	suite.InDelta((4.0+0.8)/2, byId[10].BaseScore, 1e-9)
	suite.True(byId[10].Metadata.FromTemporal)
	suite.Equal([]dataset.Genre{dataset.Action}, byId[10].Metadata.MatchedGenres)
	suite.InDelta((4.5*math.Log(2)+0.9)/2, byId[14].BaseScore, 1e-9)
	suite.True(byId[14].Metadata.FromPopularity)
	suite.True(byId[14].Metadata.FromTemporal)
	for _, c := range candidates {
		suite.Equal(SourcePhoenix, c.Source)
		suite.False(suite.uctx.Watched.Contains(c.MovieId))
	}

	candidates, err = suite.phoenix.Generate(context.Background(), suite.uctx, 2)
	suite.Require().NoError(err)
	suite.Equal([]dataset.MovieId{11}, movieIds(candidates))
}

func TestPhoenix(t *testing.T) {
	suite.Run(t, new(PhoenixTestSuite))
}

func TestFoldStrategies(t *testing.T) {
	a := []Candidate{{MovieId: 1, BaseScore: 1.0, Metadata: Metadata{MatchedGenres: []dataset.Genre{dataset.Action}}}}
	b := []Candidate{
		{MovieId: 1, BaseScore: 0.5, Metadata: Metadata{FromPopularity: true}},
		{MovieId: 2, BaseScore: 0.7, Metadata: Metadata{FromPopularity: true}},
	}
	c := []Candidate{{MovieId: 1, BaseScore: 0.0, Metadata: Metadata{FromTemporal: true}}}
	folded := foldStrategies(a, b, c)
	require.Len(t, folded, 2)
	// running pairwise average, not the mean 0.5
	assert.InDelta(t, 0.375, folded[0].BaseScore, 1e-9)
	assert.Equal(t, Metadata{
		MatchedGenres:  []dataset.Genre{dataset.Action},
		FromPopularity: true,
		FromTemporal:   true,
	}, folded[0].Metadata)
	assert.Equal(t, 0.7, folded[1].BaseScore)
}

func TestPhoenixGenreDuplicates(t *testing.T) {
	idx := new(indexBuilder).
		user(1, 2).
		movie(1, 1990, dataset.Action).
		movie(2, 1990, dataset.Comedy).
		movie(3, 1990, dataset.Action, dataset.Comedy).
		rate(1, 1, 5).
		rate(1, 2, 4).
		rate(2, 3, 4).
		build(t)
	uctx, err := BuildUserContext(idx, 1)
	require.NoError(t, err)
	cfg := config.GetDefaultConfig().Phoenix
	cfg.MinRatingCount = 1
	candidates := NewPhoenix(idx, cfg).GenreBased(uctx, 10)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 4.0, candidates[0].BaseScore, 1e-9)
	assert.Equal(t, []dataset.Genre{dataset.Action, dataset.Comedy}, candidates[0].Metadata.MatchedGenres)
}

func movieIds(candidates []Candidate) []dataset.MovieId {
	return lo.Map(candidates, func(c Candidate, _ int) dataset.MovieId {
		return c.MovieId
	})
}
