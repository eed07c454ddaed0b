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
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
)

// HighRatingThreshold is the minimum rating of a highly-rated movie.
const HighRatingThreshold = 4.0

// UserContext is the taste profile of a user, built once per request.
type UserContext struct {
	UserId           dataset.UserId
	Watched          mapset.Set[dataset.MovieId]
	HighlyRated      []dataset.MovieId
	GenrePreferences map[dataset.Genre]float64
	// PreferredEra is the lower median release year of highly-rated movies, or
	// dataset.UnknownYear if none of them has a known year.
	PreferredEra int
	AvgRating    float64
}

// BuildUserContext summarizes the ratings of a user. It fails with NotFound if the
// user does not exist. A user without ratings yields an empty context.
func BuildUserContext(idx *dataset.Index, userId dataset.UserId) (*UserContext, error) {
	if _, ok := idx.GetUser(userId); !ok {
		return nil, errors.NotFoundf("user %d", userId)
	}
	uctx := &UserContext{
		UserId:           userId,
		Watched:          mapset.NewThreadUnsafeSet[dataset.MovieId](),
		GenrePreferences: make(map[dataset.Genre]float64),
	}
	ratings := idx.GetUserRatings(userId)
	if len(ratings) == 0 {
		return uctx, nil
	}

	var total float64
	genreSum := make(map[dataset.Genre]float64)
	genreCount := make(map[dataset.Genre]int)
	var years []int
	for _, rating := range ratings {
		total += rating.Value
		uctx.Watched.Add(rating.MovieId)
		movie, ok := idx.GetMovie(rating.MovieId)
		if rating.Value >= HighRatingThreshold {
			uctx.HighlyRated = append(uctx.HighlyRated, rating.MovieId)
			if ok && movie.HasYear() {
				years = append(years, movie.Year)
			}
		}
		if ok {
			for _, genre := range movie.Genres {
				genreSum[genre] += rating.Value
				genreCount[genre]++
			}
		}
	}
	uctx.AvgRating = total / float64(len(ratings))
	for genre, sum := range genreSum {
		uctx.GenrePreferences[genre] = sum / float64(genreCount[genre])
	}
	if len(years) > 0 {
		slices.Sort(years)
		uctx.PreferredEra = years[(len(years)-1)/2]
	}
	return uctx, nil
}

// HasPreferredEra reports whether the user has a preferred era.
func (uctx *UserContext) HasPreferredEra() bool {
	return uctx.PreferredEra != dataset.UnknownYear
}

// TopGenres returns up to n genres ranked by the average rating the user gives
// them. Ties are broken by genre order.
func (uctx *UserContext) TopGenres(n int) []dataset.Genre {
	genres := make([]dataset.Genre, 0, len(uctx.GenrePreferences))
	for genre := range uctx.GenrePreferences {
		genres = append(genres, genre)
	}
	sort.Slice(genres, func(i, j int) bool {
		pi, pj := uctx.GenrePreferences[genres[i]], uctx.GenrePreferences[genres[j]]
		if pi != pj {
			return pi > pj
		}
		return genres[i] < genres[j]
	})
	return truncate(genres, n)
}
