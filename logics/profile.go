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

	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
)

type RatedMovie struct {
	MovieId dataset.MovieId `json:"movie_id"`
	Title   string          `json:"title"`
	Rating  float64         `json:"rating"`
}

type GenreAffinity struct {
	Genre     string  `json:"genre"`
	AvgRating float64 `json:"avg_rating"`
}

// UserProfile is a readable summary of a user and their tastes.
type UserProfile struct {
	User             dataset.User    `json:"user"`
	RatingCount      int             `json:"rating_count"`
	AvgRating        float64         `json:"avg_rating"`
	HighlyRatedCount int             `json:"highly_rated_count"`
	PreferredEra     int             `json:"preferred_era,omitempty"`
	TopRated         []RatedMovie    `json:"top_rated"`
	Genres           []GenreAffinity `json:"genres"`
}

// BuildUserProfile returns the profile of a user with their n best rated movies.
// Genres are listed from most to least liked.
func BuildUserProfile(idx *dataset.Index, userId dataset.UserId, n int) (*UserProfile, error) {
	user, ok := idx.GetUser(userId)
	if !ok {
		return nil, errors.NotFoundf("user %d", userId)
	}
	uctx, err := BuildUserContext(idx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings := slices.Clone(idx.GetUserRatings(userId))
	slices.SortStableFunc(ratings, func(a, b dataset.Rating) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		default:
			return int(a.MovieId) - int(b.MovieId)
		}
	})

	profile := &UserProfile{
		User:             user,
		RatingCount:      len(ratings),
		AvgRating:        uctx.AvgRating,
		HighlyRatedCount: len(uctx.HighlyRated),
		PreferredEra:     uctx.PreferredEra,
		TopRated:         make([]RatedMovie, 0, min(n, len(ratings))),
	}
	for _, rating := range truncate(ratings, n) {
		movie, _ := idx.GetMovie(rating.MovieId)
		profile.TopRated = append(profile.TopRated, RatedMovie{
			MovieId: rating.MovieId,
			Title:   movie.Title,
			Rating:  rating.Value,
		})
	}
	for _, genre := range uctx.TopGenres(len(uctx.GenrePreferences)) {
		profile.Genres = append(profile.Genres, GenreAffinity{
			Genre:     genre.String(),
			AvgRating: uctx.GenrePreferences[genre],
		})
	}
	return profile, nil
}
