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

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show the profile of a user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		userId, _ := cmd.Flags().GetUint32("user-id")
		index := loadIndex(cfg)
		profile, err := logics.BuildUserProfile(index, userId, 5)
		if err != nil {
			log.Logger().Fatal("failed to load user", zap.Uint32("user_id", userId), zap.Error(err))
		}

		fmt.Printf("User %d\n", profile.User.Id)
		fmt.Printf("  Gender:      %s\n", profile.User.Gender)
		fmt.Printf("  Age:         %s\n", profile.User.Age)
		fmt.Printf("  Occupation:  %s\n", profile.User.Occupation)
		fmt.Printf("  Zipcode:     %s\n", profile.User.Zipcode)
		fmt.Printf("  Ratings:     %d (avg %.2f, %d highly rated)\n",
			profile.RatingCount, profile.AvgRating, profile.HighlyRatedCount)
		if profile.PreferredEra != dataset.UnknownYear {
			fmt.Printf("  Preferred era: %d\n", profile.PreferredEra)
		}
		fmt.Println()

		fmt.Println("Top rated movies:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Movie", "Title", "Rating")
		for _, movie := range profile.TopRated {
			_ = table.Append([]string{
				strconv.FormatUint(uint64(movie.MovieId), 10),
				movie.Title,
				strconv.FormatFloat(movie.Rating, 'f', 1, 64),
			})
		}
		_ = table.Render()
		fmt.Println()

		fmt.Println("Genre preferences:")
		table = tablewriter.NewWriter(os.Stdout)
		table.Header("Genre", "Average rating")
		for _, genre := range profile.Genres {
			_ = table.Append([]string{genre.Genre, fmt.Sprintf("%.2f", genre.AvgRating)})
		}
		_ = table.Render()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search movies by title",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		title, _ := cmd.Flags().GetString("title")
		n, _ := cmd.Flags().GetInt("limit")
		if title == "" {
			log.Logger().Fatal("--title is required")
		}
		index := loadIndex(cfg)
		movies := index.SearchMovies(title, n)
		if len(movies) == 0 {
			fmt.Printf("No movies match %q.\n", title)
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Movie", "Title", "Genres", "Average rating", "Ratings")
		for _, movie := range movies {
			stats, _ := index.GetMovieStats(movie.Id)
			_ = table.Append([]string{
				strconv.FormatUint(uint64(movie.Id), 10),
				movie.Title,
				fmt.Sprint(movie.GenreNames()),
				fmt.Sprintf("%.2f", stats.AvgRating),
				strconv.Itoa(stats.RatingCount),
			})
		}
		_ = table.Render()
	},
}

func init() {
	rootCmd.AddCommand(userCmd, searchCmd)
	userCmd.Flags().Uint32P("user-id", "u", 1, "identifier of the user")
	searchCmd.Flags().StringP("title", "t", "", "case-insensitive substring of the title")
	searchCmd.Flags().IntP("limit", "n", 20, "maximum number of movies")
}
