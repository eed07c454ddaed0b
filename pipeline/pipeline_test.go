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

package pipeline

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/gorse-io/reelrecs/scorer"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockScorer struct {
	calls int
	score func(features []logics.CandidateFeatures) ([]float64, error)
}

func (m *mockScorer) Score(_ context.Context, _ dataset.UserId, features []logics.CandidateFeatures) ([]float64, error) {
	m.calls++
	return m.score(features)
}

func newTinyIndex(t *testing.T) *dataset.Index {
	users := []dataset.User{{Id: 1}}
	movies := []dataset.Movie{
		{Id: 1, Title: "Toy Story (1995)", Year: 1995, Genres: []dataset.Genre{dataset.Animation, dataset.Comedy}},
		{Id: 2, Title: "Heat (1995)", Year: 1995, Genres: []dataset.Genre{dataset.Action}},
		{Id: 3, Title: "Nameless", Genres: []dataset.Genre{dataset.Drama}},
	}
	index, err := dataset.Build(users, movies, nil)
	require.NoError(t, err)
	return index
}

func TestMerge(t *testing.T) {
	thunder := []logics.Candidate{
		{MovieId: 1, Source: logics.SourceThunder, BaseScore: 5},
		{MovieId: 2, Source: logics.SourceThunder, BaseScore: 1},
		{MovieId: 3, Source: logics.SourceThunder, BaseScore: 2},
	}
	phoenix := []logics.Candidate{
		{MovieId: 2, Source: logics.SourcePhoenix, BaseScore: 3},
		{MovieId: 3, Source: logics.SourcePhoenix, BaseScore: 2},
		{MovieId: 4, Source: logics.SourcePhoenix, BaseScore: 0.5},
	}
	merged := Merge(thunder, phoenix)
	assert.Equal(t, []logics.Candidate{
		{MovieId: 1, Source: logics.SourceThunder, BaseScore: 5},
		{MovieId: 2, Source: logics.SourcePhoenix, BaseScore: 3},
		{MovieId: 3, Source: logics.SourceThunder, BaseScore: 2},
		{MovieId: 4, Source: logics.SourcePhoenix, BaseScore: 0.5},
	}, merged)

	assert.Empty(t, Merge())
	assert.Len(t, Merge(thunder, nil), 3)
}

func TestMergeProperty(t *testing.T) {
	for seed := 0; seed < 20; seed++ {
		var a, b []logics.Candidate
		for i := 0; i < 30; i++ {
			a = append(a, logics.Candidate{MovieId: dataset.MovieId((i * 7 * (seed + 1)) % 40), BaseScore: float64((i * 13) % 11)})
			b = append(b, logics.Candidate{MovieId: dataset.MovieId((i * 5 * (seed + 2)) % 40), BaseScore: float64((i * 17) % 7)})
		}
		best := make(map[dataset.MovieId]float64)
		for _, c := range slices.Concat(a, b) {
			if score, exist := best[c.MovieId]; !exist || c.BaseScore > score {
				best[c.MovieId] = c.BaseScore
			}
		}
		merged := Merge(a, b)
		assert.Len(t, merged, len(best))
		for _, c := range merged {
			assert.Equal(t, best[c.MovieId], c.BaseScore)
		}
	}
}

func TestRankAndSelect(t *testing.T) {
	index := newTinyIndex(t)
	candidates := []logics.Candidate{
		{MovieId: 1, Source: logics.SourcePhoenix},
		{MovieId: 2, Source: logics.SourceThunder},
		{MovieId: 99, Source: logics.SourceThunder},
		{MovieId: 3, Source: logics.SourcePhoenix},
	}
	scores := []float64{0.2, 0.9, 1.0, 0.5}

	recommendations, err := RankAndSelect(index, candidates, scores, 10)
	require.NoError(t, err)
	require.Len(t, recommendations, 3)
	assert.Equal(t, []dataset.MovieId{2, 3, 1}, []dataset.MovieId{
		recommendations[0].MovieId, recommendations[1].MovieId, recommendations[2].MovieId})
	assert.Equal(t, Recommendation{
		MovieId:     2,
		Title:       "Heat (1995)",
		Genres:      []string{"Action"},
		Year:        1995,
		Score:       0.9,
		Source:      logics.SourceThunder,
		Explanation: "Score: 0.90, Source: Thunder",
	}, recommendations[0])
	assert.Zero(t, recommendations[1].Year)

	// missing movies do not count towards the limit
	recommendations, err = RankAndSelect(index, candidates, scores, 2)
	require.NoError(t, err)
	assert.Len(t, recommendations, 2)
	assert.Equal(t, dataset.MovieId(2), recommendations[0].MovieId)

	recommendations, err = RankAndSelect(index, candidates, scores, 0)
	require.NoError(t, err)
	assert.Empty(t, recommendations)

	_, err = RankAndSelect(index, candidates, scores[:3], 10)
	var mismatch *MismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)
}

func TestRankAndSelectNaN(t *testing.T) {
	index := newTinyIndex(t)
	candidates := []logics.Candidate{{MovieId: 1}, {MovieId: 2}, {MovieId: 3}}
	recommendations, err := RankAndSelect(index, candidates, []float64{math.NaN(), 0.3, 0.7}, 10)
	require.NoError(t, err)
	assert.Len(t, recommendations, 3)
	movies := lo.Map(recommendations, func(r Recommendation, _ int) dataset.MovieId { return r.MovieId })
	assert.ElementsMatch(t, []dataset.MovieId{1, 2, 3}, movies)
}

func TestExplain(t *testing.T) {
	assert.Equal(t, "Score: 0.12, Source: Phoenix", Explain(0.123, logics.SourcePhoenix))
	assert.Equal(t, "Score: 1.00, Source: Thunder", Explain(0.999, logics.SourceThunder))
}

type PipelineTestSuite struct {
	suite.Suite
	index  *dataset.Index
	scorer *mockScorer
	cfg    *config.Config
}

func (suite *PipelineTestSuite) SetupSuite() {
	cfg := dataset.DefaultSyntheticConfig()
	cfg.NumUsers = 200
	cfg.NumMovies = 150
	cfg.RatingsPerUser = 30
	cfg.Seed = 42
	var err error
	suite.index, err = dataset.Build(dataset.Synthetic(cfg))
	suite.Require().NoError(err)
}

func (suite *PipelineTestSuite) SetupTest() {
	suite.cfg = config.GetDefaultConfig()
	suite.cfg.Pipeline.NumJobs = 4
	suite.scorer = &mockScorer{score: func(features []logics.CandidateFeatures) ([]float64, error) {
		scores := make([]float64, len(features))
		for i, f := range features {
			scores[i] = f.AvgRating / dataset.MaxRating
		}
		return scores, nil
	}}
}

func (suite *PipelineTestSuite) newPipeline() *Pipeline {
	p, err := New(suite.index, suite.cfg, suite.scorer)
	suite.Require().NoError(err)
	return p
}

func (suite *PipelineTestSuite) TestGetRecommendations() {
	p := suite.newPipeline()
	total := 0
	for userId := dataset.UserId(1); userId <= 20; userId++ {
		recommendations, err := p.GetRecommendations(context.Background(), userId, 10)
		suite.Require().NoError(err)
		suite.LessOrEqual(len(recommendations), 10)
		total += len(recommendations)

		uctx, err := logics.BuildUserContext(suite.index, userId)
		suite.Require().NoError(err)
		for i, r := range recommendations {
			suite.False(uctx.Watched.Contains(r.MovieId))
			suite.Contains([]logics.Source{logics.SourceThunder, logics.SourcePhoenix}, r.Source)
			suite.Equal(Explain(r.Score, r.Source), r.Explanation)
			movie, exist := suite.index.GetMovie(r.MovieId)
			suite.True(exist)
			suite.Equal(movie.Title, r.Title)
			if i > 0 {
				suite.GreaterOrEqual(recommendations[i-1].Score, r.Score)
			}
		}
	}
	suite.Positive(total)
}

func (suite *PipelineTestSuite) TestUnknownUser() {
	p := suite.newPipeline()
	_, err := p.GetRecommendations(context.Background(), 100000, 10)
	suite.True(errors.Is(err, errors.NotFound))
	suite.Zero(suite.scorer.calls)
}

func (suite *PipelineTestSuite) TestRemoteScoringFailure() {
	suite.scorer.score = func(features []logics.CandidateFeatures) ([]float64, error) {
		return nil, &scorer.RemoteError{Err: errors.New("connection refused")}
	}
	p := suite.newPipeline()
	var failed bool
	for userId := dataset.UserId(1); userId <= 20; userId++ {
		recommendations, err := p.GetRecommendations(context.Background(), userId, 10)
		if err != nil {
			suite.True(scorer.IsRemoteError(err))
			suite.Nil(recommendations)
			failed = true
		}
	}
	suite.True(failed)
}

func (suite *PipelineTestSuite) TestScoreLengthMismatch() {
	suite.scorer.score = func(features []logics.CandidateFeatures) ([]float64, error) {
		return make([]float64, len(features)-1), nil
	}
	p := suite.newPipeline()
	var failed bool
	for userId := dataset.UserId(1); userId <= 20; userId++ {
		_, err := p.GetRecommendations(context.Background(), userId, 10)
		if err != nil {
			var mismatch *MismatchError
			suite.ErrorAs(err, &mismatch)
			failed = true
		}
	}
	suite.True(failed)
}

func (suite *PipelineTestSuite) TestGenerate() {
	suite.cfg.Thunder.Candidates = 5
	suite.cfg.Phoenix.Candidates = 7
	p := suite.newPipeline()
	uctx, err := logics.BuildUserContext(suite.index, 1)
	suite.Require().NoError(err)
	lists, err := p.Generate(context.Background(), uctx)
	suite.Require().NoError(err)
	suite.Require().Len(lists, 2)
	suite.LessOrEqual(len(lists[0]), 5)
	suite.LessOrEqual(len(lists[1]), 7)
	for _, c := range lists[0] {
		suite.Equal(logics.SourceThunder, c.Source)
	}
	for _, c := range lists[1] {
		suite.Equal(logics.SourcePhoenix, c.Source)
	}
}

func (suite *PipelineTestSuite) TestInvalidExpression() {
	suite.cfg.Filter.Expression = "avg_rating >"
	_, err := New(suite.index, suite.cfg, suite.scorer)
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *PipelineTestSuite) TestExpressionFilter() {
	suite.cfg.Filter.Expression = "source == 'Phoenix'"
	p := suite.newPipeline()
	suite.Len(p.Filters().Filters(), 4)
	for userId := dataset.UserId(1); userId <= 10; userId++ {
		recommendations, err := p.GetRecommendations(context.Background(), userId, 10)
		suite.Require().NoError(err)
		for _, r := range recommendations {
			suite.Equal(logics.SourcePhoenix, r.Source)
		}
	}
}

func (suite *PipelineTestSuite) TestUserContextCache() {
	p := suite.newPipeline()
	first, err := p.UserContext(3)
	suite.Require().NoError(err)
	second, err := p.UserContext(3)
	suite.Require().NoError(err)
	suite.Same(first, second)
	_, err = p.UserContext(100000)
	suite.True(errors.Is(err, errors.NotFound))

	suite.cfg.Pipeline.ContextCacheSize = 0
	p = suite.newPipeline()
	first, err = p.UserContext(3)
	suite.Require().NoError(err)
	second, err = p.UserContext(3)
	suite.Require().NoError(err)
	suite.NotSame(first, second)
	suite.Equal(first.HighlyRated, second.HighlyRated)
}

func TestPipeline(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
