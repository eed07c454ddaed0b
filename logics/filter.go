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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Filter removes candidates. Implementations must preserve the relative order of
// the candidates they keep.
type Filter interface {
	Name() string
	Apply(ctx context.Context, candidates []Candidate, uctx *UserContext) ([]Candidate, error)
}

// Chain applies filters in order, each one consuming the output of the previous.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// NewChainFromConfig builds the stock filters: watched, minimum rating and genre
// preference, followed by the recency and expression filters if configured.
func NewChainFromConfig(index *dataset.Index, cfg config.FilterConfig) (*Chain, error) {
	chain := NewChain(
		AlreadyWatchedFilter{},
		NewMinimumRatingFilter(index, cfg.MinAvgRating, cfg.MinRatingCount),
		NewGenrePreferenceFilter(index, cfg.TopGenres),
	)
	if cfg.RecencyWindow > 0 {
		chain.Add(NewRecencyFilter(index, cfg.RecencyWindow))
	}
	if cfg.Expression != "" {
		filter, err := NewExpressionFilter(index, cfg.Expression)
		if err != nil {
			return nil, errors.Trace(err)
		}
		chain.Add(filter)
	}
	return chain, nil
}

func (c *Chain) Add(filter Filter) {
	c.filters = append(c.filters, filter)
}

func (c *Chain) Filters() []Filter {
	return c.filters
}

// Apply runs every filter. If any filter fails, no partial result is returned.
func (c *Chain) Apply(ctx context.Context, candidates []Candidate, uctx *UserContext) ([]Candidate, error) {
	current := candidates
	for _, filter := range c.filters {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		before := len(current)
		next, err := filter.Apply(ctx, current, uctx)
		if err != nil {
			return nil, errors.Annotatef(err, "filter %s", filter.Name())
		}
		current = next
		log.Logger().Debug("apply filter",
			zap.String("filter", filter.Name()),
			zap.Int("n_input", before),
			zap.Int("n_output", len(current)))
	}
	return current, nil
}

// AlreadyWatchedFilter drops movies the user has rated.
type AlreadyWatchedFilter struct{}

func (AlreadyWatchedFilter) Name() string {
	return "AlreadyWatchedFilter"
}

func (AlreadyWatchedFilter) Apply(_ context.Context, candidates []Candidate, uctx *UserContext) ([]Candidate, error) {
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		return !uctx.Watched.Contains(c.MovieId)
	}), nil
}

// MinimumRatingFilter drops movies below quality thresholds, and movies without
// statistics.
type MinimumRatingFilter struct {
	index        *dataset.Index
	minAvgRating float64
	minCount     int
}

func NewMinimumRatingFilter(index *dataset.Index, minAvgRating float64, minCount int) *MinimumRatingFilter {
	return &MinimumRatingFilter{index: index, minAvgRating: minAvgRating, minCount: minCount}
}

func (f *MinimumRatingFilter) Name() string {
	return "MinimumRatingFilter"
}

func (f *MinimumRatingFilter) Apply(_ context.Context, candidates []Candidate, _ *UserContext) ([]Candidate, error) {
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		stats, ok := f.index.GetMovieStats(c.MovieId)
		return ok && stats.AvgRating >= f.minAvgRating && stats.RatingCount >= f.minCount
	}), nil
}

// GenrePreferenceFilter keeps movies sharing a genre with the favorite genres of
// the user. Unknown movies are dropped.
type GenrePreferenceFilter struct {
	index     *dataset.Index
	topGenres int
}

func NewGenrePreferenceFilter(index *dataset.Index, topGenres int) *GenrePreferenceFilter {
	return &GenrePreferenceFilter{index: index, topGenres: topGenres}
}

func (f *GenrePreferenceFilter) Name() string {
	return "GenrePreferenceFilter"
}

func (f *GenrePreferenceFilter) Apply(_ context.Context, candidates []Candidate, uctx *UserContext) ([]Candidate, error) {
	topGenres := mapset.NewThreadUnsafeSet(uctx.TopGenres(f.topGenres)...)
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		movie, ok := f.index.GetMovie(c.MovieId)
		return ok && lo.SomeBy(movie.Genres, func(g dataset.Genre) bool {
			return topGenres.Contains(g)
		})
	}), nil
}

// RecencyFilter keeps movies released within a window around the preferred era.
// It keeps everything if the user has no preferred era, and keeps movies of
// unknown year. Unknown movies are dropped.
type RecencyFilter struct {
	index  *dataset.Index
	window int
}

func NewRecencyFilter(index *dataset.Index, window int) *RecencyFilter {
	return &RecencyFilter{index: index, window: window}
}

func (f *RecencyFilter) Name() string {
	return "RecencyFilter"
}

func (f *RecencyFilter) Apply(_ context.Context, candidates []Candidate, uctx *UserContext) ([]Candidate, error) {
	if !uctx.HasPreferredEra() {
		return candidates, nil
	}
	lower, upper := uctx.PreferredEra-f.window, uctx.PreferredEra+f.window
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		movie, ok := f.index.GetMovie(c.MovieId)
		if !ok {
			return false
		}
		return !movie.HasYear() || (movie.Year >= lower && movie.Year <= upper)
	}), nil
}

// ExpressionFilter keeps candidates for which a boolean expression holds, for
// example "avg_rating >= 4 && 'Comedy' in genres". Unknown movies are dropped.
type ExpressionFilter struct {
	index   *dataset.Index
	source  string
	program *vm.Program
}

func expressionEnv() map[string]any {
	return map[string]any{
		"movie_id":            dataset.MovieId(0),
		"title":               "",
		"year":                0,
		"genres":              []string{},
		"avg_rating":          0.0,
		"rating_count":        0,
		"popularity":          0.0,
		"source":              "",
		"base_score":          0.0,
		"similar_users_count": 0,
		"from_popularity":     false,
		"from_temporal":       false,
	}
}

func NewExpressionFilter(index *dataset.Index, source string) (*ExpressionFilter, error) {
	program, err := expr.Compile(source, expr.Env(expressionEnv()), expr.AsBool())
	if err != nil {
		return nil, errors.NewNotValid(err, "filter expression")
	}
	return &ExpressionFilter{index: index, source: source, program: program}, nil
}

func (f *ExpressionFilter) Name() string {
	return "ExpressionFilter"
}

func (f *ExpressionFilter) Apply(_ context.Context, candidates []Candidate, _ *UserContext) ([]Candidate, error) {
	var filtered []Candidate
	for _, c := range candidates {
		movie, ok := f.index.GetMovie(c.MovieId)
		if !ok {
			continue
		}
		stats, _ := f.index.GetMovieStats(c.MovieId)
		result, err := expr.Run(f.program, map[string]any{
			"movie_id":            c.MovieId,
			"title":               movie.Title,
			"year":                movie.Year,
			"genres":              movie.GenreNames(),
			"avg_rating":          stats.AvgRating,
			"rating_count":        stats.RatingCount,
			"popularity":          stats.PopularityScore,
			"source":              string(c.Source),
			"base_score":          c.BaseScore,
			"similar_users_count": c.Metadata.SimilarUsersCount,
			"from_popularity":     c.Metadata.FromPopularity,
			"from_temporal":       c.Metadata.FromTemporal,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "evaluate %q on movie %d", f.source, c.MovieId)
		}
		if result.(bool) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
