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
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// yearProximityScale is the distance in years at which the proximity term of the
// temporal strategy reaches zero.
const yearProximityScale = 10.0

// Phoenix explores beyond the neighborhood of a user with three strategies:
// favorite genres, globally popular movies and movies from the preferred era.
type Phoenix struct {
	index *dataset.Index
	cfg   config.PhoenixConfig
}

func NewPhoenix(index *dataset.Index, cfg config.PhoenixConfig) *Phoenix {
	return &Phoenix{index: index, cfg: cfg}
}

func (p *Phoenix) Name() Source {
	return SourcePhoenix
}

// Generate runs the strategies concurrently and folds their results in a fixed
// order: genre, popularity, temporal. A movie found by several strategies gets
// the running pairwise average of their scores, and the union of their flags.
func (p *Phoenix) Generate(ctx context.Context, uctx *UserContext, limit int) ([]Candidate, error) {
	start := time.Now()
	if limit <= 0 {
		return nil, nil
	}
	var genre, popular, temporal []Candidate
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		genre = p.GenreBased(uctx, limit/2)
		return ctx.Err()
	})
	g.Go(func() error {
		popular = p.PopularityBased(uctx, limit/3)
		return ctx.Err()
	})
	if uctx.HasPreferredEra() {
		g.Go(func() error {
			temporal = p.Temporal(uctx, limit/3)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}

	candidates := foldStrategies(genre, popular, temporal)
	sortCandidates(candidates)
	candidates = truncate(candidates, limit)
	log.Logger().Debug("generate discovery candidates",
		zap.Uint32("user_id", uctx.UserId),
		zap.Int("n_genre", len(genre)),
		zap.Int("n_popular", len(popular)),
		zap.Int("n_temporal", len(temporal)),
		zap.Int("n_candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(start)))
	return candidates, nil
}

// foldStrategies merges strategy results. Each collision replaces the score with
// the mean of the current score and the incoming one, so later strategies weigh
// more than a simultaneous mean would give them.
func foldStrategies(strategies ...[]Candidate) []Candidate {
	var order []dataset.MovieId
	merged := make(map[dataset.MovieId]*Candidate)
	for _, strategy := range strategies {
		for _, candidate := range strategy {
			if existing, ok := merged[candidate.MovieId]; ok {
				existing.BaseScore = (existing.BaseScore + candidate.BaseScore) / 2
				existing.Metadata.union(candidate.Metadata)
			} else {
				c := candidate
				merged[candidate.MovieId] = &c
				order = append(order, candidate.MovieId)
			}
		}
	}
	return lo.Map(order, func(movieId dataset.MovieId, _ int) Candidate {
		return *merged[movieId]
	})
}

// qualified reports whether a movie is unwatched and meets quality thresholds.
func (p *Phoenix) qualified(uctx *UserContext, movieId dataset.MovieId) (dataset.MovieStats, bool) {
	if uctx.Watched.Contains(movieId) {
		return dataset.MovieStats{}, false
	}
	stats, ok := p.index.GetMovieStats(movieId)
	if !ok || stats.AvgRating < p.cfg.MinAvgRating || stats.RatingCount < p.cfg.MinRatingCount {
		return dataset.MovieStats{}, false
	}
	return stats, true
}

// GenreBased scores qualified movies of the favorite genres by
// (avg_rating / 5) * genre affinity. A movie matching several favorite genres
// keeps its best score and records every matched genre.
func (p *Phoenix) GenreBased(uctx *UserContext, limit int) []Candidate {
	var order []dataset.MovieId
	pool := make(map[dataset.MovieId]*Candidate)
	for _, genre := range uctx.TopGenres(p.cfg.TopGenres) {
		affinity := uctx.GenrePreferences[genre]
		for _, movieId := range p.index.GetMoviesByGenre(genre) {
			stats, ok := p.qualified(uctx, movieId)
			if !ok {
				continue
			}
			score := stats.AvgRating / dataset.MaxRating * affinity
			if c, exist := pool[movieId]; exist {
				c.BaseScore = max(c.BaseScore, score)
				c.Metadata.MatchedGenres = append(c.Metadata.MatchedGenres, genre)
				continue
			}
			pool[movieId] = &Candidate{
				MovieId:   movieId,
				Source:    SourcePhoenix,
				BaseScore: score,
				Metadata:  Metadata{MatchedGenres: []dataset.Genre{genre}},
			}
			order = append(order, movieId)
		}
	}
	candidates := lo.Map(order, func(movieId dataset.MovieId, _ int) Candidate {
		return *pool[movieId]
	})
	sortCandidates(candidates)
	return truncate(candidates, limit)
}

// PopularityBased scores qualified movies by their popularity score.
func (p *Phoenix) PopularityBased(uctx *UserContext, limit int) []Candidate {
	var candidates []Candidate
	for _, movieId := range p.index.GetAllMovieIDs() {
		stats, ok := p.qualified(uctx, movieId)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			MovieId:   movieId,
			Source:    SourcePhoenix,
			BaseScore: stats.PopularityScore,
			Metadata:  Metadata{FromPopularity: true},
		})
	}
	sortCandidates(candidates)
	return truncate(candidates, limit)
}

// Temporal scores qualified movies released around the preferred era by the mean
// of year proximity and avg_rating / 5. It returns nothing if the user has no
// preferred era.
func (p *Phoenix) Temporal(uctx *UserContext, limit int) []Candidate {
	if !uctx.HasPreferredEra() {
		return nil
	}
	era := uctx.PreferredEra
	var candidates []Candidate
	for _, movieId := range p.index.GetMoviesInYearRange(era-p.cfg.EraWindow, era+p.cfg.EraWindow) {
		stats, ok := p.qualified(uctx, movieId)
		if !ok {
			continue
		}
		movie, ok := p.index.GetMovie(movieId)
		if !ok || !movie.HasYear() {
			continue
		}
		proximity := 1 - math.Min(math.Abs(float64(movie.Year-era))/yearProximityScale, 1)
		candidates = append(candidates, Candidate{
			MovieId:   movieId,
			Source:    SourcePhoenix,
			BaseScore: (proximity + stats.AvgRating/dataset.MaxRating) / 2,
			Metadata:  Metadata{FromTemporal: true},
		})
	}
	sortCandidates(candidates)
	return truncate(candidates, limit)
}
