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
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend movies for a user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		defer setupTracing(cfg)()
		userId, _ := cmd.Flags().GetUint32("user-id")
		limit, _ := cmd.Flags().GetInt("limit")
		explain, _ := cmd.Flags().GetBool("explain")

		index := loadIndex(cfg)
		p, closer := newPipeline(cmd, cfg, index)
		defer closer.Close()
		recommendations, err := p.GetRecommendations(context.Background(), userId, limit)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Uint32("user_id", userId), zap.Error(err))
		}
		printRecommendations(recommendations, explain)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().Uint32P("user-id", "u", 1, "identifier of the user")
	recommendCmd.Flags().IntP("limit", "n", 20, "number of recommendations")
	recommendCmd.Flags().Bool("explain", false, "show the source and explanation of each recommendation")
}

func printRecommendations(recommendations []pipeline.Recommendation, explain bool) {
	if len(recommendations) == 0 {
		fmt.Println("No recommendations.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"#", "Movie", "Title", "Year", "Genres", "Score"}
	if explain {
		header = append(header, "Source", "Explanation")
	}
	table.Header(lo.ToAnySlice(header)...)
	for i, r := range recommendations {
		year := ""
		if r.Year != 0 {
			year = strconv.Itoa(r.Year)
		}
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(uint64(r.MovieId), 10),
			r.Title,
			year,
			strings.Join(r.Genres, "|"),
			fmt.Sprintf("%.4f", r.Score),
		}
		if explain {
			row = append(row, string(r.Source), r.Explanation)
		}
		if err := table.Append(row); err != nil {
			log.Logger().Fatal("failed to append row", zap.Error(err))
		}
	}
	if err := table.Render(); err != nil {
		log.Logger().Fatal("failed to render table", zap.Error(err))
	}
}
