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
	"testing"

	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUserProfile(t *testing.T) {
	idx := new(indexBuilder).
		user(1, 2).
		movie(1, 1990, dataset.Action).
		movie(2, 2000, dataset.Comedy).
		movie(3, 1995, dataset.Action, dataset.Drama).
		movie(4, dataset.UnknownYear, dataset.Drama).
		rate(1, 1, 5).
		rate(1, 2, 3).
		rate(1, 3, 4).
		rate(1, 4, 2).
		build(t)

	profile, err := BuildUserProfile(idx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, dataset.UserId(1), profile.User.Id)
	assert.Equal(t, 4, profile.RatingCount)
	assert.InDelta(t, 3.5, profile.AvgRating, 1e-9)
	assert.Equal(t, 2, profile.HighlyRatedCount)
	assert.Equal(t, 1990, profile.PreferredEra)
	assert.Equal(t, []RatedMovie{
		{MovieId: 1, Title: "Movie 1 (1990)", Rating: 5},
		{MovieId: 3, Title: "Movie 3 (1995)", Rating: 4},
	}, profile.TopRated)
	assert.Equal(t, []GenreAffinity{
		{Genre: "Action", AvgRating: 4.5},
		{Genre: "Comedy", AvgRating: 3},
		{Genre: "Drama", AvgRating: 3},
	}, profile.Genres)

	profile, err = BuildUserProfile(idx, 2, 5)
	require.NoError(t, err)
	assert.Zero(t, profile.RatingCount)
	assert.Empty(t, profile.TopRated)
	assert.Empty(t, profile.Genres)

	_, err = BuildUserProfile(idx, 3, 5)
	assert.True(t, errors.Is(err, errors.NotFound))
}
