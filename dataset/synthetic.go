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
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/jaswdr/faker"
)

// SyntheticConfig describes the shape of a generated dataset.
type SyntheticConfig struct {
	NumUsers          int
	NumMovies         int
	RatingsPerUser    int
	FirstYear         int
	LastYear          int
	UnknownYearRatio  float64
	MaxGenresPerMovie int
	Seed              int64
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		NumUsers:          1000,
		NumMovies:         500,
		RatingsPerUser:    50,
		FirstYear:         1950,
		LastYear:          2000,
		UnknownYearRatio:  0.05,
		MaxGenresPerMovie: 3,
		Seed:              0,
	}
}

// Synthetic generates a random MovieLens-shaped dataset. Movies have a latent
// quality so that averages, and hence recommendations, are not uniform noise.
// The same seed always yields the same dataset.
func Synthetic(cfg SyntheticConfig) ([]User, []Movie, []Rating) {
	fake := faker.NewWithSeed(rand.NewSource(cfg.Seed))

	users := make([]User, cfg.NumUsers)
	for i := range users {
		users[i] = User{
			Id:         UserId(i + 1),
			Gender:     Gender(fake.IntBetween(0, 1)),
			Age:        AgeGroup(fake.IntBetween(int(Under18), int(Age56Plus))),
			Occupation: Occupation(fake.IntBetween(0, len(occupationNames)-1)),
			Zipcode:    fake.Address().PostCode(),
		}
	}

	movies := make([]Movie, cfg.NumMovies)
	quality := make([]float64, cfg.NumMovies)
	for i := range movies {
		var genres []Genre
		numGenres := fake.IntBetween(1, max(cfg.MaxGenresPerMovie, 1))
		for len(genres) < numGenres {
			genre := Genre(fake.IntBetween(0, int(NumGenres)-1))
			if !slices.Contains(genres, genre) {
				genres = append(genres, genre)
			}
		}
		title := strings.Join(fake.Lorem().Words(fake.IntBetween(1, 3)), " ")
		year := UnknownYear
		if float64(fake.IntBetween(0, 999))/1000 >= cfg.UnknownYearRatio {
			year = fake.IntBetween(cfg.FirstYear, cfg.LastYear)
			title = fmt.Sprintf("%s (%d)", title, year)
		}
		movies[i] = Movie{
			Id:     MovieId(i + 1),
			Title:  title,
			Year:   year,
			Genres: genres,
		}
		quality[i] = float64(fake.IntBetween(15, 45)) / 10
	}

	var ratings []Rating
	for _, user := range users {
		seen := make(map[int]struct{}, cfg.RatingsPerUser)
		for len(seen) < min(cfg.RatingsPerUser, cfg.NumMovies) {
			// skew towards low ids so that some movies are popular
			i := min(fake.IntBetween(0, cfg.NumMovies-1), fake.IntBetween(0, cfg.NumMovies-1))
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			value := quality[i] + float64(fake.IntBetween(-10, 10))/10
			value = float64(int(value + 0.5))
			ratings = append(ratings, Rating{
				UserId:    user.Id,
				MovieId:   movies[i].Id,
				Value:     min(max(value, MinRating), MaxRating),
				Timestamp: fake.Int64Between(956703932, 1046454590),
			})
		}
	}
	return users, movies, ratings
}
