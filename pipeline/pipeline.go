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
	"fmt"
	"slices"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/gorse-io/reelrecs/scorer"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/gorse-io/reelrecs/pipeline")

// Recommendation is a ranked movie returned to the caller.
type Recommendation struct {
	MovieId     dataset.MovieId `json:"movie_id"`
	Title       string          `json:"title"`
	Genres      []string        `json:"genres"`
	Year        int             `json:"year,omitempty"`
	Score       float64         `json:"score"`
	Source      logics.Source   `json:"source"`
	Explanation string          `json:"explanation"`
}

// MismatchError is raised when two stages disagree on the number of records.
// It signals a bug rather than bad input.
type MismatchError struct {
	Stage    string
	Expected int
	Actual   int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d records but got %d", e.Stage, e.Expected, e.Actual)
}

// Pipeline serves recommendation requests over a frozen index.
type Pipeline struct {
	index      *dataset.Index
	generators []logics.CandidateGenerator
	limits     []int
	filters    *logics.Chain
	features   *logics.FeatureEngineer
	scorer     scorer.Scorer
	// contexts caches user contexts. The index never changes, so a cached
	// context is never stale. Nil if disabled.
	contexts *ttlcache.Cache[dataset.UserId, *logics.UserContext]
}

// New wires the candidate sources, filters and feature engineer configured by cfg.
func New(index *dataset.Index, cfg *config.Config, s scorer.Scorer) (*Pipeline, error) {
	chain, err := logics.NewChainFromConfig(index, cfg.Filter)
	if err != nil {
		return nil, errors.Trace(err)
	}
	jobs := cfg.Pipeline.NumJobs
	var contexts *ttlcache.Cache[dataset.UserId, *logics.UserContext]
	if cfg.Pipeline.ContextCacheSize > 0 {
		contexts = ttlcache.New(
			ttlcache.WithTTL[dataset.UserId, *logics.UserContext](cfg.Pipeline.ContextCacheTTL),
			ttlcache.WithCapacity[dataset.UserId, *logics.UserContext](uint64(cfg.Pipeline.ContextCacheSize)),
		)
	}
	return &Pipeline{
		index: index,
		generators: []logics.CandidateGenerator{
			logics.NewThunder(index, cfg.Thunder, jobs),
			logics.NewPhoenix(index, cfg.Phoenix),
		},
		limits:   []int{cfg.Thunder.Candidates, cfg.Phoenix.Candidates},
		filters:  chain,
		features: logics.NewFeatureEngineer(index, cfg.Features, jobs),
		scorer:   s,
		contexts: contexts,
	}, nil
}

func (p *Pipeline) Index() *dataset.Index {
	return p.index
}

func (p *Pipeline) Filters() *logics.Chain {
	return p.filters
}

// GetRecommendations runs every stage for a user and returns up to limit
// recommendations ordered by score. A scoring failure aborts the request
// without partial results.
func (p *Pipeline) GetRecommendations(ctx context.Context, userId dataset.UserId, limit int) ([]Recommendation, error) {
	ctx, span := tracer.Start(ctx, "GetRecommendations",
		trace.WithAttributes(attribute.Int64("user_id", int64(userId)), attribute.Int("limit", limit)))
	defer span.End()
	start := time.Now()

	recommendations, err := p.getRecommendations(ctx, userId, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	elapsed := time.Since(start)
	GetRecommendationsSeconds.Observe(elapsed.Seconds())
	log.Logger().Info("complete recommendation",
		zap.Uint32("user_id", userId),
		zap.Int("n_recommendations", len(recommendations)),
		zap.Duration("elapsed", elapsed))
	return recommendations, nil
}

func (p *Pipeline) getRecommendations(ctx context.Context, userId dataset.UserId, limit int) ([]Recommendation, error) {
	var uctx *logics.UserContext
	if err := stage(ctx, StageBuildContext, func(context.Context) (err error) {
		uctx, err = p.UserContext(userId)
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}

	var lists [][]logics.Candidate
	if err := stage(ctx, StageGenerate, func(ctx context.Context) (err error) {
		lists, err = p.Generate(ctx, uctx)
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}

	var candidates []logics.Candidate
	_ = stage(ctx, StageMerge, func(context.Context) error {
		candidates = Merge(lists...)
		log.Logger().Debug("merge candidates",
			zap.Uint32("user_id", userId),
			zap.Int("n_candidates", len(candidates)))
		return nil
	})

	if err := stage(ctx, StageFilter, func(ctx context.Context) (err error) {
		before := len(candidates)
		candidates, err = p.filters.Apply(ctx, candidates, uctx)
		FilteredCandidatesTotal.Add(float64(before - len(candidates)))
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}

	var features []logics.CandidateFeatures
	if err := stage(ctx, StageFeatures, func(ctx context.Context) (err error) {
		features, err = p.features.ComputeFeatures(ctx, candidates, uctx)
		if err == nil && len(features) != len(candidates) {
			err = &MismatchError{Stage: StageFeatures, Expected: len(candidates), Actual: len(features)}
		}
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}

	var scores []float64
	if err := stage(ctx, StageScore, func(ctx context.Context) (err error) {
		if len(features) == 0 {
			return nil
		}
		scores, err = p.scorer.Score(ctx, userId, features)
		if err != nil {
			ScoringFailuresTotal.Inc()
		}
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}

	var recommendations []Recommendation
	if err := stage(ctx, StageRank, func(context.Context) (err error) {
		recommendations, err = RankAndSelect(p.index, candidates, scores, limit)
		return
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return recommendations, nil
}

// UserContext returns the context of a user, from the cache if possible. The
// returned context is shared and must not be modified.
func (p *Pipeline) UserContext(userId dataset.UserId) (*logics.UserContext, error) {
	if p.contexts != nil {
		if item := p.contexts.Get(userId); item != nil {
			ContextCacheHitsTotal.Inc()
			return item.Value(), nil
		}
	}
	uctx, err := logics.BuildUserContext(p.index, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if p.contexts != nil {
		p.contexts.Set(userId, uctx, ttlcache.DefaultTTL)
	}
	return uctx, nil
}

// Generate runs every candidate source concurrently and returns their lists in
// source order.
func (p *Pipeline) Generate(ctx context.Context, uctx *logics.UserContext) ([][]logics.Candidate, error) {
	lists := make([][]logics.Candidate, len(p.generators))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, generator := range p.generators {
		group.Go(func() error {
			candidates, err := generator.Generate(groupCtx, uctx, p.limits[i])
			if err != nil {
				return errors.Annotatef(err, "generate %s candidates", generator.Name())
			}
			CandidatesTotal.WithLabelValues(string(generator.Name())).Add(float64(len(candidates)))
			lists[i] = candidates
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// Merge deduplicates candidates by movie id. On collision the entry with the
// higher base score wins; on a tie the first one seen is kept. The result keeps
// first-seen order.
func Merge(lists ...[]logics.Candidate) []logics.Candidate {
	positions := make(map[dataset.MovieId]int)
	var merged []logics.Candidate
	for _, list := range lists {
		for _, candidate := range list {
			if i, exist := positions[candidate.MovieId]; exist {
				if candidate.BaseScore > merged[i].BaseScore {
					merged[i] = candidate
				}
				continue
			}
			positions[candidate.MovieId] = len(merged)
			merged = append(merged, candidate)
		}
	}
	return merged
}

// RankAndSelect orders candidates by score and keeps the first limit that
// resolve to a movie in the index. NaN scores compare as equal to anything.
func RankAndSelect(index *dataset.Index, candidates []logics.Candidate, scores []float64, limit int) ([]Recommendation, error) {
	if len(scores) != len(candidates) {
		return nil, &MismatchError{Stage: StageRank, Expected: len(candidates), Actual: len(scores)}
	}
	type scored struct {
		candidate logics.Candidate
		score     float64
	}
	ranked := make([]scored, len(candidates))
	for i := range candidates {
		ranked[i] = scored{candidate: candidates[i], score: scores[i]}
	}
	slices.SortFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	recommendations := make([]Recommendation, 0, min(max(limit, 0), len(ranked)))
	for _, item := range ranked {
		if len(recommendations) >= limit {
			break
		}
		movie, exist := index.GetMovie(item.candidate.MovieId)
		if !exist {
			continue
		}
		recommendations = append(recommendations, Recommendation{
			MovieId:     movie.Id,
			Title:       movie.Title,
			Genres:      movie.GenreNames(),
			Year:        movie.Year,
			Score:       item.score,
			Source:      item.candidate.Source,
			Explanation: Explain(item.score, item.candidate.Source),
		})
	}
	return recommendations, nil
}

// Explain renders the human-readable reason attached to a recommendation.
func Explain(score float64, source logics.Source) string {
	return fmt.Sprintf("Score: %.2f, Source: %s", score, source)
}

// stage runs fn inside a child span and records its latency.
func stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	StageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
