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
	"slices"

	"github.com/gorse-io/reelrecs/dataset"
)

// Source identifies the generator that proposed a candidate.
type Source string

const (
	SourceThunder Source = "Thunder"
	SourcePhoenix Source = "Phoenix"
)

type Metadata struct {
	SimilarUsersCount int             `json:"similar_users_count,omitempty"`
	MatchedGenres     []dataset.Genre `json:"matched_genres,omitempty"`
	FromPopularity    bool            `json:"from_popularity,omitempty"`
	FromTemporal      bool            `json:"from_temporal,omitempty"`
}

// union merges flags and matched genres of other into m.
func (m *Metadata) union(other Metadata) {
	for _, genre := range other.MatchedGenres {
		if !slices.Contains(m.MatchedGenres, genre) {
			m.MatchedGenres = append(m.MatchedGenres, genre)
		}
	}
	m.SimilarUsersCount = max(m.SimilarUsersCount, other.SimilarUsersCount)
	m.FromPopularity = m.FromPopularity || other.FromPopularity
	m.FromTemporal = m.FromTemporal || other.FromTemporal
}

// Candidate is a movie proposed for recommendation with a provisional score.
type Candidate struct {
	MovieId   dataset.MovieId `json:"movie_id"`
	Source    Source          `json:"source"`
	BaseScore float64         `json:"base_score"`
	Metadata  Metadata        `json:"metadata"`
}

// CandidateGenerator proposes up to limit candidates for a user, best first.
type CandidateGenerator interface {
	Name() Source
	Generate(ctx context.Context, uctx *UserContext, limit int) ([]Candidate, error)
}

// sortCandidates orders candidates by base score descending. Ties are broken by
// movie id so that results are reproducible.
func sortCandidates(candidates []Candidate) {
	slices.SortFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.BaseScore > b.BaseScore:
			return -1
		case a.BaseScore < b.BaseScore:
			return 1
		case a.MovieId < b.MovieId:
			return -1
		case a.MovieId > b.MovieId:
			return 1
		default:
			return 0
		}
	})
}

func truncate[T any](a []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(a) > n {
		return a[:n]
	}
	return a
}
