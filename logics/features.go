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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/reelrecs/common/parallel"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
)

const (
	// overlapTopGenres is the number of favorite genres compared by genre overlap.
	overlapTopGenres = 3
	// popularityScale is the rating count at which popularity_percentile saturates.
	popularityScale = 500.0
	// yearPreferenceScale is the distance in years at which year_preference_score reaches zero.
	yearPreferenceScale = 50.0
	neutralYearPreference = 0.5
	daysPerYear           = 365
)

// CandidateFeatures is the feature vector sent to the scoring service.
type CandidateFeatures struct {
	MovieId             dataset.MovieId `json:"movie_id"`
	GenreOverlapScore   float64         `json:"genre_overlap_score"`
	GenreDiversityScore float64         `json:"genre_diversity_score"`
	CollaborativeScore  float64         `json:"collaborative_score"`
	SimilarUsersCount   int             `json:"similar_users_count"`
	AvgRating           float64         `json:"avg_rating"`
	RatingCount         int             `json:"rating_count"`
	// PopularityPercentile is rating_count / 500 clamped to [0, 1], not a true rank.
	PopularityPercentile float64 `json:"popularity_percentile"`
	MovieYear            int     `json:"movie_year,omitempty"`
	YearPreferenceScore  float64 `json:"year_preference_score"`
	DaysSinceReleased    float64 `json:"days_since_released"`
}

// FeatureEngineer computes one feature vector per candidate. Candidates are
// independent, so the work is spread over a worker pool.
type FeatureEngineer struct {
	index         *dataset.Index
	referenceYear int
	jobs          int
}

func NewFeatureEngineer(index *dataset.Index, cfg config.FeaturesConfig, jobs int) *FeatureEngineer {
	return &FeatureEngineer{index: index, referenceYear: cfg.ReferenceYear, jobs: max(jobs, 1)}
}

// ComputeFeatures returns features in the order of candidates.
func (e *FeatureEngineer) ComputeFeatures(ctx context.Context, candidates []Candidate, uctx *UserContext) ([]CandidateFeatures, error) {
	topGenres := mapset.NewThreadUnsafeSet(uctx.TopGenres(overlapTopGenres)...)
	features, err := parallel.Map(ctx, candidates, e.jobs, func(c Candidate) CandidateFeatures {
		return e.compute(c, uctx, topGenres)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return features, nil
}

// compute returns an all-default record if the movie or its statistics are missing.
func (e *FeatureEngineer) compute(c Candidate, uctx *UserContext, topGenres mapset.Set[dataset.Genre]) CandidateFeatures {
	features := CandidateFeatures{MovieId: c.MovieId}
	movie, ok := e.index.GetMovie(c.MovieId)
	if !ok {
		return features
	}
	stats, ok := e.index.GetMovieStats(c.MovieId)
	if !ok {
		return features
	}
	features.GenreOverlapScore = GenreOverlap(mapset.NewThreadUnsafeSet(movie.Genres...), topGenres)
	features.CollaborativeScore = c.BaseScore
	features.SimilarUsersCount = c.Metadata.SimilarUsersCount
	features.AvgRating = stats.AvgRating
	features.RatingCount = stats.RatingCount
	features.PopularityPercentile = clamp(float64(stats.RatingCount)/popularityScale, 0, 1)
	features.MovieYear = movie.Year
	features.YearPreferenceScore = YearPreference(movie.Year, uctx.PreferredEra)
	if movie.HasYear() {
		features.DaysSinceReleased = float64((e.referenceYear - movie.Year) * daysPerYear)
	}
	return features
}

// GenreOverlap is the Jaccard similarity of two genre sets, or 0 if either is empty.
func GenreOverlap(a, b mapset.Set[dataset.Genre]) float64 {
	if a.Cardinality() == 0 || b.Cardinality() == 0 {
		return 0
	}
	return float64(a.Intersect(b).Cardinality()) / float64(a.Union(b).Cardinality())
}

// YearPreference decays linearly with the distance between a release year and the
// preferred era. It is neutral if either is unknown.
func YearPreference(year, era int) float64 {
	if year == dataset.UnknownYear || era == dataset.UnknownYear {
		return neutralYearPreference
	}
	return clamp(1-math.Abs(float64(year-era))/yearPreferenceScale, 0, 1)
}

func clamp(x, lower, upper float64) float64 {
	return math.Max(lower, math.Min(x, upper))
}
