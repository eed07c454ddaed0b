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
	"bufio"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

const (
	UsersFile   = "users.dat"
	MoviesFile  = "movies.dat"
	RatingsFile = "ratings.dat"

	separator = "::"
)

// LoadMovieLens loads a MovieLens 1M style dataset from a directory and builds
// the index. The three files are parsed concurrently.
func LoadMovieLens(dir string, opts ...BuildOption) (*Index, error) {
	start := time.Now()
	var (
		users   []User
		movies  []Movie
		ratings []Rating
	)
	var g errgroup.Group
	g.Go(func() (err error) {
		users, err = parseFile(filepath.Join(dir, UsersFile), ParseUsers)
		return
	})
	g.Go(func() (err error) {
		movies, err = parseFile(filepath.Join(dir, MoviesFile), ParseMovies)
		return
	})
	g.Go(func() (err error) {
		ratings, err = parseFile(filepath.Join(dir, RatingsFile), ParseRatings)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load MovieLens dataset",
		zap.String("dir", dir),
		zap.Int("n_users", len(users)),
		zap.Int("n_movies", len(movies)),
		zap.Int("n_ratings", len(ratings)),
		zap.Duration("elapsed", time.Since(start)))
	return Build(users, movies, ratings, opts...)
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", path)
	}
	defer f.Close()
	// MovieLens files are encoded in ISO-8859-1.
	values, err := parse(charmap.ISO8859_1.NewDecoder().Reader(f))
	if err != nil {
		return nil, errors.Annotate(err, filepath.Base(path))
	}
	return values, nil
}

// scanFields calls fn on each non-empty line split by "::".
func scanFields(r io.Reader, n int, fn func(lineNo int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, separator, n)
		if len(fields) != n {
			return errors.NotValidf("line %d: expected %d fields but found %d", lineNo, n, len(fields))
		}
		if err := fn(lineNo, fields); err != nil {
			return errors.Annotatef(err, "line %d", lineNo)
		}
	}
	return errors.Trace(scanner.Err())
}

// ParseUsers parses lines of UserID::Gender::Age::Occupation::Zip-code.
func ParseUsers(r io.Reader) ([]User, error) {
	var users []User
	err := scanFields(r, 5, func(_ int, fields []string) error {
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return errors.NotValidf("user id %q", fields[0])
		}
		gender, err := ParseGender(fields[1])
		if err != nil {
			return err
		}
		age, err := ParseAgeGroup(fields[2])
		if err != nil {
			return err
		}
		occupation, err := ParseOccupation(fields[3])
		if err != nil {
			return err
		}
		users = append(users, User{
			Id:         UserId(id),
			Gender:     gender,
			Age:        age,
			Occupation: occupation,
			Zipcode:    fields[4],
		})
		return nil
	})
	return users, err
}

// ParseMovies parses lines of MovieID::Title::Genres, where genres are separated by "|".
func ParseMovies(r io.Reader) ([]Movie, error) {
	var movies []Movie
	err := scanFields(r, 3, func(_ int, fields []string) error {
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return errors.NotValidf("movie id %q", fields[0])
		}
		var genres []Genre
		if fields[2] != "" {
			for _, name := range strings.Split(fields[2], "|") {
				genre, err := ParseGenre(name)
				if err != nil {
					return err
				}
				if !slices.Contains(genres, genre) {
					genres = append(genres, genre)
				}
			}
		}
		movies = append(movies, Movie{
			Id:     MovieId(id),
			Title:  fields[1],
			Year:   ExtractYear(fields[1]),
			Genres: genres,
		})
		return nil
	})
	return movies, err
}

// ParseRatings parses lines of UserID::MovieID::Rating::Timestamp.
func ParseRatings(r io.Reader) ([]Rating, error) {
	var ratings []Rating
	err := scanFields(r, 4, func(_ int, fields []string) error {
		userId, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return errors.NotValidf("user id %q", fields[0])
		}
		movieId, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return errors.NotValidf("movie id %q", fields[1])
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return errors.NotValidf("rating %q", fields[2])
		}
		timestamp, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return errors.NotValidf("timestamp %q", fields[3])
		}
		ratings = append(ratings, Rating{
			UserId:    UserId(userId),
			MovieId:   MovieId(movieId),
			Value:     value,
			Timestamp: timestamp,
		})
		return nil
	})
	return ratings, err
}

// ExtractYear extracts the release year from a title like "Toy Story (1995)".
// It returns UnknownYear if the title has no trailing year.
func ExtractYear(title string) int {
	start := strings.LastIndex(title, "(")
	end := strings.LastIndex(title, ")")
	if start < 0 || end <= start {
		return UnknownYear
	}
	year, err := strconv.Atoi(strings.TrimSpace(title[start+1 : end]))
	if err != nil || year <= 0 {
		return UnknownYear
	}
	return year
}
