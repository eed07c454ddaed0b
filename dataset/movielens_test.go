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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersDat = `1::F::1::10::48067
2::M::56::16::70072

3::M::25::15::55117
`
	moviesDat = `1::Toy Story (1995)::Animation|Children's|Comedy
2::Jumanji (1995)::Adventure|Children's|Fantasy
3::City of Lost Children, The (1995)::Adventure|Sci-Fi|Sci-Fi
4::Untitled::Drama
`
	ratingsDat = `1::1::5::978300760
2::1::3::978298413
3::2::4::978220179
3::3::2::978199279
`
)

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(strings.NewReader(usersDat))
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, User{Id: 1, Gender: Female, Age: Under18, Occupation: 10, Zipcode: "48067"}, users[0])
	assert.Equal(t, Age56Plus, users[1].Age)
	assert.Equal(t, "scientist", users[2].Occupation.String())

	_, err = ParseUsers(strings.NewReader("1::X::1::10::48067"))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseUsers(strings.NewReader("1::F::2::10::48067"))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseUsers(strings.NewReader("1::F::1::21::48067"))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseUsers(strings.NewReader("1::F::1"))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestParseMovies(t *testing.T) {
	movies, err := ParseMovies(strings.NewReader(moviesDat))
	require.NoError(t, err)
	require.Len(t, movies, 4)
	assert.Equal(t, Movie{
		Id:     1,
		Title:  "Toy Story (1995)",
		Year:   1995,
		Genres: []Genre{Animation, Children, Comedy},
	}, movies[0])
	assert.Equal(t, "City of Lost Children, The (1995)", movies[2].Title)
	// duplicated genres are collapsed
	assert.Equal(t, []Genre{Adventure, SciFi}, movies[2].Genres)
	assert.False(t, movies[3].HasYear())

	_, err = ParseMovies(strings.NewReader("1::Toy Story (1995)::Cartoon"))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseMovies(strings.NewReader("x::Toy Story (1995)::Comedy"))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestParseRatings(t *testing.T) {
	ratings, err := ParseRatings(strings.NewReader(ratingsDat))
	require.NoError(t, err)
	require.Len(t, ratings, 4)
	assert.Equal(t, Rating{UserId: 1, MovieId: 1, Value: 5, Timestamp: 978300760}, ratings[0])

	_, err = ParseRatings(strings.NewReader("1::1::five::978300760"))
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseRatings(strings.NewReader("1::1::5"))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 1995, ExtractYear("Toy Story (1995)"))
	assert.Equal(t, 1966, ExtractYear("Good, The Bad and The Ugly, The (Buono, il brutto, il cattivo, Il) (1966)"))
	assert.Equal(t, UnknownYear, ExtractYear("Untitled"))
	assert.Equal(t, UnknownYear, ExtractYear("Untitled (unknown)"))
	assert.Equal(t, UnknownYear, ExtractYear("Broken (1995"))
}

func TestLoadMovieLens(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFile), []byte(usersDat), 0644))
	// "Légende" in ISO-8859-1
	movies := moviesDat + "5::L\xe9gende (1985)::Fantasy\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, MoviesFile), []byte(movies), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RatingsFile), []byte(ratingsDat), 0644))

	idx, err := LoadMovieLens(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.CountUsers())
	assert.Equal(t, 5, idx.CountMovies())
	assert.Equal(t, 4, idx.CountRatings())
	movie, ok := idx.GetMovie(5)
	require.True(t, ok)
	assert.Equal(t, "Légende (1985)", movie.Title)
	assert.Equal(t, 1985, movie.Year)
}

func TestLoadMovieLensMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFile), []byte(usersDat), 0644))
	_, err := LoadMovieLens(dir)
	assert.Error(t, err)
}

func TestLoadMovieLensDanglingRating(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UsersFile), []byte(usersDat), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MoviesFile), []byte(moviesDat), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RatingsFile), []byte("9::1::5::978300760\n"), 0644))
	_, err := LoadMovieLens(dir)
	assert.True(t, errors.Is(err, errors.NotValid))
}
