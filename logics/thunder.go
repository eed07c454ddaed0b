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
	"time"

	"github.com/gorse-io/reelrecs/common/heap"
	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/common/parallel"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Thunder generates candidates from users who like the same movies.
//
//  1. Users sharing at least MinSharedMovies highly-rated movies are neighbors.
//  2. Unwatched movies liked by neighbors are scored by the number of neighbors
//     who liked them.
type Thunder struct {
	index *dataset.Index
	cfg   config.ThunderConfig
	jobs  int
}

func NewThunder(index *dataset.Index, cfg config.ThunderConfig, jobs int) *Thunder {
	return &Thunder{index: index, cfg: cfg, jobs: max(jobs, 1)}
}

func (t *Thunder) Name() Source {
	return SourceThunder
}

func (t *Thunder) Generate(ctx context.Context, uctx *UserContext, limit int) ([]Candidate, error) {
	start := time.Now()
	if len(uctx.HighlyRated) == 0 || limit <= 0 {
		return nil, nil
	}
	neighbors, err := t.FindNeighbors(ctx, uctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(neighbors) == 0 {
		return nil, nil
	}
	votes, err := t.countVotes(ctx, uctx, neighbors)
	if err != nil {
		return nil, errors.Trace(err)
	}

	filter := heap.NewTopKFilter[dataset.MovieId, int](limit)
	for movieId, count := range votes {
		filter.Push(movieId, count)
	}
	elems := filter.PopAll()
	candidates := make([]Candidate, len(elems))
	for i, elem := range elems {
		candidates[i] = Candidate{
			MovieId:   elem.Value,
			Source:    SourceThunder,
			BaseScore: float64(elem.Weight),
			Metadata:  Metadata{SimilarUsersCount: elem.Weight},
		}
	}
	sortCandidates(candidates)
	log.Logger().Debug("generate collaborative candidates",
		zap.Uint32("user_id", uctx.UserId),
		zap.Int("n_neighbors", len(neighbors)),
		zap.Int("n_candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(start)))
	return candidates, nil
}

// FindNeighbors returns users sharing enough highly-rated movies with the user,
// most similar first, capped at MaxNeighbors.
func (t *Thunder) FindNeighbors(ctx context.Context, uctx *UserContext) ([]dataset.UserId, error) {
	shared, err := parallel.MapReduce(ctx, uctx.HighlyRated, t.jobs,
		newCounter[dataset.UserId],
		func(acc map[dataset.UserId]int, movieId dataset.MovieId) map[dataset.UserId]int {
			for _, rating := range t.index.GetMovieRatings(movieId) {
				if rating.UserId != uctx.UserId && rating.Value >= t.cfg.HighRatingThreshold {
					acc[rating.UserId]++
				}
			}
			return acc
		},
		mergeCounters[dataset.UserId])
	if err != nil {
		return nil, errors.Trace(err)
	}

	filter := heap.NewTopKFilter[dataset.UserId, int](t.cfg.MaxNeighbors)
	for userId, count := range shared {
		if count >= t.cfg.MinSharedMovies {
			filter.Push(userId, count)
		}
	}
	return filter.PopAllValues(), nil
}

// countVotes counts, per unwatched movie, the neighbors who liked it.
func (t *Thunder) countVotes(ctx context.Context, uctx *UserContext, neighbors []dataset.UserId) (map[dataset.MovieId]int, error) {
	return parallel.MapReduce(ctx, neighbors, t.jobs,
		newCounter[dataset.MovieId],
		func(acc map[dataset.MovieId]int, userId dataset.UserId) map[dataset.MovieId]int {
			for _, rating := range t.index.GetUserRatings(userId) {
				if rating.Value >= t.cfg.HighRatingThreshold && !uctx.Watched.Contains(rating.MovieId) {
					acc[rating.MovieId]++
				}
			}
			return acc
		},
		mergeCounters[dataset.MovieId])
}

func newCounter[K comparable]() map[K]int {
	return make(map[K]int)
}

func mergeCounters[K comparable](acc, partial map[K]int) map[K]int {
	for k, v := range partial {
		acc[k] += v
	}
	return acc
}
