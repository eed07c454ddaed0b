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

	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/juju/errors"
)

// LinearScorer is a weighted blend of features:
//
//	score = 0.4 * avg_rating / 5
//	      + 0.25 * genre_overlap_score
//	      + 0.2 * collaborative_score / (1 + collaborative_score)
//	      + 0.1 * popularity_percentile
//	      + 0.05 * year_preference_score
//
// clamped to [0, 1].
type LinearScorer struct {
	RatingWeight        float64
	GenreWeight         float64
	CollaborativeWeight float64
	PopularityWeight    float64
	YearWeight          float64
}

func NewLinearScorer() *LinearScorer {
	return &LinearScorer{
		RatingWeight:        0.4,
		GenreWeight:         0.25,
		CollaborativeWeight: 0.2,
		PopularityWeight:    0.1,
		YearWeight:          0.05,
	}
}

func (s *LinearScorer) Score(ctx context.Context, _ dataset.UserId, features []logics.CandidateFeatures) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	scores := make([]float64, len(features))
	for i, f := range features {
		collaborative := math.Max(f.CollaborativeScore, 0)
		score := s.RatingWeight*f.AvgRating/dataset.MaxRating +
			s.GenreWeight*f.GenreOverlapScore +
			s.CollaborativeWeight*collaborative/(1+collaborative) +
			s.PopularityWeight*f.PopularityPercentile +
			s.YearWeight*f.YearPreferenceScore
		scores[i] = math.Max(0, math.Min(score, 1))
	}
	return scores, nil
}
