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

package dataset

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData() ([]User, []Movie, []Rating) {
	users := []User{
		{Id: 1, Gender: Male, Age: Age25To34, Occupation: 12, Zipcode: "10001"},
		{Id: 2, Gender: Female, Age: Age18To24, Occupation: 4, Zipcode: "94110"},
	}
	movies := []Movie{
		{Id: 10, Title: "Toy Story (1995)", Year: 1995, Genres: []Genre{Animation, Children, Comedy}},
		{Id: 20, Title: "Heat (1995)", Year: 1995, Genres: []Genre{Action, Crime, Thriller}},
		{Id: 30, Title: "Casablanca (1942)", Year: 1942, Genres: []Genre{Drama, Romance, War}},
		{Id: 40, Title: "Untitled", Genres: []Genre{Drama}},
	}
	ratings := []Rating{
		{UserId: 1, MovieId: 10, Value: 5, Timestamp: 1},
		{UserId: 1, MovieId: 20, Value: 3, Timestamp: 2},
		{UserId: 2, MovieId: 10, Value: 4, Timestamp: 3},
		{UserId: 2, MovieId: 30, Value: 1, Timestamp: 4},
	}
	return users, movies, ratings
}

func TestBuild(t *testing.T) {
	idx, err := Build(testData())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.CountUsers())
	assert.Equal(t, 4, idx.CountMovies())
	assert.Equal(t, 4, idx.CountRatings())

	user, ok := idx.GetUser(2)
	assert.True(t, ok)
	assert.Equal(t, "94110", user.Zipcode)
	_, ok = idx.GetUser(3)
	assert.False(t, ok)

	movie, ok := idx.GetMovie(30)
	assert.True(t, ok)
	assert.Equal(t, "Casablanca (1942)", movie.Title)
	_, ok = idx.GetMovie(50)
	assert.False(t, ok)

	assert.Len(t, idx.GetUserRatings(1), 2)
	assert.Len(t, idx.GetMovieRatings(10), 2)
	assert.Empty(t, idx.GetMovieRatings(40))
	assert.Equal(t, []MovieId{10, 20, 30, 40}, idx.GetAllMovieIDs())
	assert.Equal(t, []UserId{1, 2}, idx.GetAllUserIDs())
}

func TestBuildMovieStats(t *testing.T) {
	idx, err := Build(testData(), WithJobs(3))
	require.NoError(t, err)

	stats, ok := idx.GetMovieStats(10)
	assert.True(t, ok)
	assert.InDelta(t, 4.5, stats.AvgRating, 1e-9)
	assert.Equal(t, 2, stats.RatingCount)
	assert.InDelta(t, 4.5*math.Log(3), stats.PopularityScore, 1e-9)

	// movies without ratings have no statistics
	_, ok = idx.GetMovieStats(40)
	assert.False(t, ok)
}

func TestBuildValidation(t *testing.T) {
	users, movies, ratings := testData()

	_, err := Build(users, movies, append(ratings, Rating{UserId: 3, MovieId: 10, Value: 3}))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Build(users, movies, append(ratings, Rating{UserId: 1, MovieId: 50, Value: 3}))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Build(users, movies, append(ratings, Rating{UserId: 1, MovieId: 30, Value: 0.5}))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Build(users, movies, append(ratings, Rating{UserId: 1, MovieId: 30, Value: 5.5}))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Build(users, movies, append(ratings, Rating{UserId: 1, MovieId: 30, Value: math.NaN()}))
	assert.True(t, errors.Is(err, errors.NotValid))

	// bounds are inclusive
	_, err = Build(users, movies, append(ratings,
		Rating{UserId: 1, MovieId: 30, Value: MinRating},
		Rating{UserId: 1, MovieId: 40, Value: MaxRating}))
	assert.NoError(t, err)
}

// Validation succeeds if and only if every rating references an existing user
// and movie and lies in [1, 5].
func TestBuildValidationRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users, movies, _ := testData()
	for trial := 0; trial < 200; trial++ {
		var ratings []Rating
		valid := true
		for i := 0; i < 10; i++ {
			r := Rating{
				UserId:  UserId(rng.Intn(3) + 1),
				MovieId: MovieId((rng.Intn(5) + 1) * 10),
				Value:   float64(rng.Intn(13)) * 0.5,
			}
			if r.UserId > 2 || r.MovieId > 40 || r.Value < MinRating || r.Value > MaxRating {
				valid = false
			}
			ratings = append(ratings, r)
		}
		_, err := Build(users, movies, ratings)
		if valid {
			assert.NoError(t, err)
		} else {
			assert.True(t, errors.Is(err, errors.NotValid))
		}
	}
}

func TestGetMoviesByGenre(t *testing.T) {
	idx, err := Build(testData())
	require.NoError(t, err)
	assert.Equal(t, []MovieId{30, 40}, idx.GetMoviesByGenre(Drama))
	assert.Equal(t, []MovieId{10}, idx.GetMoviesByGenre(Comedy))
	assert.Empty(t, idx.GetMoviesByGenre(Western))
	assert.Empty(t, idx.GetMoviesByGenre(NumGenres))
}

func TestGetMoviesInYearRange(t *testing.T) {
	idx, err := Build(testData())
	require.NoError(t, err)
	assert.Equal(t, []MovieId{30, 10, 20}, idx.GetMoviesInYearRange(1900, 2000))
	assert.Equal(t, []MovieId{10, 20}, idx.GetMoviesInYearRange(1995, 1995))
	assert.Equal(t, []MovieId{30}, idx.GetMoviesInYearRange(1940, 1950))
	assert.Empty(t, idx.GetMoviesInYearRange(1996, 2020))
	assert.Empty(t, idx.GetMoviesInYearRange(2000, 1900))
}

func TestSearchMovies(t *testing.T) {
	idx, err := Build(testData())
	require.NoError(t, err)
	movies := idx.SearchMovies("  TOY ", 0)
	require.Len(t, movies, 1)
	assert.Equal(t, MovieId(10), movies[0].Id)
	assert.Len(t, idx.SearchMovies("(19", 0), 3)
	assert.Len(t, idx.SearchMovies("(19", 2), 2)
	assert.Empty(t, idx.SearchMovies("matrix", 0))
}

func TestIndexConcurrentReads(t *testing.T) {
	users, movies, ratings := Synthetic(SyntheticConfig{
		NumUsers:          50,
		NumMovies:         100,
		RatingsPerUser:    20,
		FirstYear:         1980,
		LastYear:          2000,
		MaxGenresPerMovie: 3,
		Seed:              1,
	})
	idx, err := Build(users, movies, ratings)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, movieId := range idx.GetAllMovieIDs() {
				_, _ = idx.GetMovieStats(movieId)
				_ = idx.GetMovieRatings(movieId)
			}
			_ = idx.GetMoviesInYearRange(1985, 1995)
		}()
	}
	wg.Wait()
}

func TestSynthetic(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.NumUsers = 20
	cfg.NumMovies = 30
	cfg.RatingsPerUser = 10
	users, movies, ratings := Synthetic(cfg)
	assert.Len(t, users, 20)
	assert.Len(t, movies, 30)
	assert.Len(t, ratings, 200)
	_, err := Build(users, movies, ratings)
	assert.NoError(t, err)

	// deterministic given the seed
	_, _, again := Synthetic(cfg)
	assert.Equal(t, ratings, again)
}
