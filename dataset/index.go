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
	"context"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/common/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Index is the in-memory store of users, movies and ratings. It is built once by
// Build and never mutated afterwards, so it is safe for any number of concurrent
// readers without locks.
type Index struct {
	users        map[UserId]User
	movies       map[MovieId]Movie
	userRatings  map[UserId][]Rating
	movieRatings map[MovieId][]Rating
	genreIndex   [NumGenres][]MovieId
	yearIndex    []yearEntry
	stats        map[MovieId]MovieStats
	movieIds     []MovieId
	numRatings   int
}

type yearEntry struct {
	year    int
	movieId MovieId
}

type buildOptions struct {
	jobs int
}

type BuildOption func(*buildOptions)

// WithJobs sets the number of workers used to compute derived structures.
func WithJobs(jobs int) BuildOption {
	return func(o *buildOptions) {
		o.jobs = jobs
	}
}

// Build validates the dataset and returns a frozen index. It fails with a NotValid
// error if any rating references an unknown user or movie, or lies outside
// [MinRating, MaxRating].
func Build(users []User, movies []Movie, ratings []Rating, opts ...BuildOption) (*Index, error) {
	o := buildOptions{jobs: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		users:        make(map[UserId]User, len(users)),
		movies:       make(map[MovieId]Movie, len(movies)),
		userRatings:  make(map[UserId][]Rating),
		movieRatings: make(map[MovieId][]Rating),
		numRatings:   len(ratings),
	}
	for _, user := range users {
		idx.users[user.Id] = user
	}
	for _, movie := range movies {
		idx.movies[movie.Id] = movie
	}
	for _, rating := range ratings {
		if _, ok := idx.users[rating.UserId]; !ok {
			return nil, errors.NotValidf("rating references unknown user %d", rating.UserId)
		}
		if _, ok := idx.movies[rating.MovieId]; !ok {
			return nil, errors.NotValidf("rating references unknown movie %d", rating.MovieId)
		}
		if !(rating.Value >= MinRating && rating.Value <= MaxRating) {
			return nil, errors.NotValidf("rating %v of user %d on movie %d", rating.Value, rating.UserId, rating.MovieId)
		}
		idx.userRatings[rating.UserId] = append(idx.userRatings[rating.UserId], rating)
		idx.movieRatings[rating.MovieId] = append(idx.movieRatings[rating.MovieId], rating)
	}
	idx.movieIds = lo.Keys(idx.movies)
	slices.Sort(idx.movieIds)

	var g errgroup.Group
	g.Go(func() error {
		stats, err := computeMovieStats(idx.movieRatings, o.jobs)
		if err != nil {
			return errors.Trace(err)
		}
		idx.stats = stats
		return nil
	})
	g.Go(func() error {
		idx.buildSecondaryIndices()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("build index",
		zap.Int("n_users", len(idx.users)),
		zap.Int("n_movies", len(idx.movies)),
		zap.Int("n_ratings", idx.numRatings))
	return idx, nil
}

func (idx *Index) buildSecondaryIndices() {
	for _, movieId := range idx.movieIds {
		movie := idx.movies[movieId]
		for _, genre := range movie.Genres {
			if genre >= 0 && genre < NumGenres {
				idx.genreIndex[genre] = append(idx.genreIndex[genre], movieId)
			}
		}
		if movie.HasYear() {
			idx.yearIndex = append(idx.yearIndex, yearEntry{year: movie.Year, movieId: movieId})
		}
	}
	sort.Slice(idx.yearIndex, func(i, j int) bool {
		if idx.yearIndex[i].year != idx.yearIndex[j].year {
			return idx.yearIndex[i].year < idx.yearIndex[j].year
		}
		return idx.yearIndex[i].movieId < idx.yearIndex[j].movieId
	})
}

// computeMovieStats fans out over ratings-by-movie and merges the partial results.
func computeMovieStats(movieRatings map[MovieId][]Rating, jobs int) (map[MovieId]MovieStats, error) {
	movieIds := lo.Keys(movieRatings)
	return parallel.MapReduce(context.Background(), movieIds, jobs,
		func() map[MovieId]MovieStats {
			return make(map[MovieId]MovieStats)
		},
		func(acc map[MovieId]MovieStats, movieId MovieId) map[MovieId]MovieStats {
			ratings := movieRatings[movieId]
			var sum float64
			for _, r := range ratings {
				sum += r.Value
			}
			var avg float64
			if len(ratings) > 0 {
				avg = sum / float64(len(ratings))
			}
			acc[movieId] = MovieStats{
				AvgRating:       avg,
				RatingCount:     len(ratings),
				PopularityScore: PopularityScore(avg, len(ratings)),
			}
			return acc
		},
		func(acc, partial map[MovieId]MovieStats) map[MovieId]MovieStats {
			for k, v := range partial {
				acc[k] = v
			}
			return acc
		})
}

// GetUser returns the user with the given id.
func (idx *Index) GetUser(id UserId) (User, bool) {
	user, ok := idx.users[id]
	return user, ok
}

// GetMovie returns the movie with the given id.
func (idx *Index) GetMovie(id MovieId) (Movie, bool) {
	movie, ok := idx.movies[id]
	return movie, ok
}

// GetMovieStats returns aggregated statistics of a movie. Movies without
// ratings have no statistics.
func (idx *Index) GetMovieStats(id MovieId) (MovieStats, bool) {
	stats, ok := idx.stats[id]
	return stats, ok
}

// GetUserRatings returns ratings of a user. The returned slice must not be modified.
func (idx *Index) GetUserRatings(id UserId) []Rating {
	return idx.userRatings[id]
}

// GetMovieRatings returns ratings of a movie. The returned slice must not be modified.
func (idx *Index) GetMovieRatings(id MovieId) []Rating {
	return idx.movieRatings[id]
}

// GetMoviesByGenre returns ids of movies tagged with the genre in ascending order.
func (idx *Index) GetMoviesByGenre(genre Genre) []MovieId {
	if genre < 0 || genre >= NumGenres {
		return nil
	}
	return idx.genreIndex[genre]
}

// GetMoviesInYearRange returns ids of movies released in [from, to], ordered by year.
// The complexity is O(log n + k).
func (idx *Index) GetMoviesInYearRange(from, to int) []MovieId {
	if from > to {
		return nil
	}
	begin := sort.Search(len(idx.yearIndex), func(i int) bool {
		return idx.yearIndex[i].year >= from
	})
	end := sort.Search(len(idx.yearIndex), func(i int) bool {
		return idx.yearIndex[i].year > to
	})
	movieIds := make([]MovieId, 0, end-begin)
	for _, entry := range idx.yearIndex[begin:end] {
		movieIds = append(movieIds, entry.movieId)
	}
	return movieIds
}

// GetAllMovieIDs returns ids of all movies in ascending order.
func (idx *Index) GetAllMovieIDs() []MovieId {
	return idx.movieIds
}

// GetAllUserIDs returns ids of all users in ascending order.
func (idx *Index) GetAllUserIDs() []UserId {
	userIds := lo.Keys(idx.users)
	slices.Sort(userIds)
	return userIds
}

// SearchMovies returns movies whose title contains the query, case-insensitively.
func (idx *Index) SearchMovies(query string, n int) []Movie {
	query = strings.ToLower(strings.TrimSpace(query))
	var movies []Movie
	for _, movieId := range idx.movieIds {
		if n > 0 && len(movies) >= n {
			break
		}
		movie := idx.movies[movieId]
		if strings.Contains(strings.ToLower(movie.Title), query) {
			movies = append(movies, movie)
		}
	}
	return movies
}

func (idx *Index) CountUsers() int {
	return len(idx.users)
}

func (idx *Index) CountMovies() int {
	return len(idx.movies)
}

func (idx *Index) CountRatings() int {
	return idx.numRatings
}
