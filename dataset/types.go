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
	"math"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

type (
	UserId  = uint32
	MovieId = uint32
)

// UnknownYear marks a movie whose release year could not be determined.
const UnknownYear = 0

const (
	MinRating = 1.0
	MaxRating = 5.0
)

type Gender int

const (
	Male Gender = iota
	Female
)

func (g Gender) String() string {
	switch g {
	case Male:
		return "Male"
	case Female:
		return "Female"
	default:
		return fmt.Sprintf("Gender(%d)", int(g))
	}
}

func ParseGender(s string) (Gender, error) {
	switch s {
	case "M":
		return Male, nil
	case "F":
		return Female, nil
	default:
		return 0, errors.NotValidf("gender %q", s)
	}
}

// AgeGroup is the age bracket of a user.
type AgeGroup int

const (
	Under18 AgeGroup = iota
	Age18To24
	Age25To34
	Age35To44
	Age45To49
	Age50To55
	Age56Plus
)

var ageGroupCodes = map[string]AgeGroup{
	"1":  Under18,
	"18": Age18To24,
	"25": Age25To34,
	"35": Age35To44,
	"45": Age45To49,
	"50": Age50To55,
	"56": Age56Plus,
}

var ageGroupNames = []string{"Under 18", "18-24", "25-34", "35-44", "45-49", "50-55", "56+"}

func (a AgeGroup) String() string {
	if a < 0 || int(a) >= len(ageGroupNames) {
		return fmt.Sprintf("AgeGroup(%d)", int(a))
	}
	return ageGroupNames[a]
}

func ParseAgeGroup(s string) (AgeGroup, error) {
	if a, ok := ageGroupCodes[s]; ok {
		return a, nil
	}
	return 0, errors.NotValidf("age %q", s)
}

type Occupation int

var occupationNames = []string{
	"other", "academic/educator", "artist", "clerical/admin", "college/grad student",
	"customer service", "doctor/health care", "executive/managerial", "farmer", "homemaker",
	"K-12 student", "lawyer", "programmer", "retired", "sales/marketing", "scientist",
	"self-employed", "technician/engineer", "tradesman/craftsman", "unemployed", "writer",
}

func (o Occupation) String() string {
	if o < 0 || int(o) >= len(occupationNames) {
		return fmt.Sprintf("Occupation(%d)", int(o))
	}
	return occupationNames[o]
}

func ParseOccupation(s string) (Occupation, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= len(occupationNames) {
		return 0, errors.NotValidf("occupation %q", s)
	}
	return Occupation(i), nil
}

type Genre int

const (
	Action Genre = iota
	Adventure
	Animation
	Children
	Comedy
	Crime
	Documentary
	Drama
	Fantasy
	FilmNoir
	Horror
	Musical
	Mystery
	Romance
	SciFi
	Thriller
	War
	Western
	NumGenres
)

var genreNames = []string{
	"Action", "Adventure", "Animation", "Children's", "Comedy", "Crime", "Documentary",
	"Drama", "Fantasy", "Film-Noir", "Horror", "Musical", "Mystery", "Romance", "Sci-Fi",
	"Thriller", "War", "Western",
}

func (g Genre) String() string {
	if g < 0 || g >= NumGenres {
		return fmt.Sprintf("Genre(%d)", int(g))
	}
	return genreNames[g]
}

func (g Genre) MarshalText() ([]byte, error) {
	if g < 0 || g >= NumGenres {
		return nil, errors.NotValidf("genre %d", int(g))
	}
	return []byte(genreNames[g]), nil
}

func (g *Genre) UnmarshalText(text []byte) error {
	genre, err := ParseGenre(string(text))
	if err != nil {
		return err
	}
	*g = genre
	return nil
}

// ParseGenre accepts the MovieLens spelling of a genre, case-insensitively.
func ParseGenre(s string) (Genre, error) {
	for i, name := range genreNames {
		if strings.EqualFold(s, name) {
			return Genre(i), nil
		}
	}
	return 0, errors.NotValidf("genre %q", s)
}

type User struct {
	Id         UserId     `json:"id"`
	Gender     Gender     `json:"gender"`
	Age        AgeGroup   `json:"age"`
	Occupation Occupation `json:"occupation"`
	Zipcode    string     `json:"zipcode"`
}

type Movie struct {
	Id     MovieId `json:"id"`
	Title  string  `json:"title"`
	Year   int     `json:"year,omitempty"`
	Genres []Genre `json:"genres"`
}

// HasYear reports whether the release year of the movie is known.
func (m Movie) HasYear() bool {
	return m.Year != UnknownYear
}

// GenreNames returns the display names of the genres of the movie.
func (m Movie) GenreNames() []string {
	names := make([]string, len(m.Genres))
	for i, g := range m.Genres {
		names[i] = g.String()
	}
	return names
}

type Rating struct {
	UserId    UserId  `json:"user_id"`
	MovieId   MovieId `json:"movie_id"`
	Value     float64 `json:"rating"`
	Timestamp int64   `json:"timestamp"`
}

// MovieStats are aggregated over all ratings of a movie.
type MovieStats struct {
	AvgRating       float64 `json:"avg_rating"`
	RatingCount     int     `json:"rating_count"`
	PopularityScore float64 `json:"popularity_score"`
}

// PopularityScore blends quality and volume:
//
//	popularity = avg_rating * ln(rating_count + 1)
func PopularityScore(avgRating float64, ratingCount int) float64 {
	return avgRating * math.Log(float64(ratingCount)+1)
}
