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
	"math"
	"os"
	"slices"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/common/parallel"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/juju/ratelimit"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Measure recommendation latency under concurrent requests",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		defer setupTracing(cfg)()
		requests, _ := cmd.Flags().GetInt("requests")
		concurrent, _ := cmd.Flags().GetInt("concurrent")
		qps, _ := cmd.Flags().GetFloat64("qps")
		limit, _ := cmd.Flags().GetInt("limit")

		var index *dataset.Index
		if synthetic, _ := cmd.Flags().GetBool("synthetic"); synthetic {
			syntheticConfig := dataset.DefaultSyntheticConfig()
			syntheticConfig.Seed, _ = cmd.Flags().GetInt64("seed")
			users, movies, ratings := dataset.Synthetic(syntheticConfig)
			var err error
			if index, err = dataset.Build(users, movies, ratings, dataset.WithJobs(cfg.Pipeline.NumJobs)); err != nil {
				log.Logger().Fatal("failed to build synthetic dataset", zap.Error(err))
			}
		} else {
			index = loadIndex(cfg)
		}
		p, closer := newPipeline(cmd, cfg, index)
		defer closer.Close()

		userIds := index.GetAllUserIDs()
		if len(userIds) == 0 {
			log.Logger().Fatal("no users in dataset")
		}
		var bucket *ratelimit.Bucket
		if qps > 0 {
			bucket = ratelimit.NewBucketWithRate(qps, int64(math.Max(1, math.Ceil(qps))))
		}

		latencies := make([]time.Duration, requests)
		failures := atomic.NewInt64(0)
		bar := progressbar.Default(int64(requests), "benchmark")
		start := time.Now()
		_ = parallel.Parallel(context.Background(), requests, concurrent, func(_, jobId int) error {
			if bucket != nil {
				bucket.Wait(1)
			}
			userId := userIds[jobId%len(userIds)]
			begin := time.Now()
			if _, err := p.GetRecommendations(context.Background(), userId, limit); err != nil {
				failures.Inc()
				log.Logger().Warn("failed to recommend", zap.Uint32("user_id", userId), zap.Error(err))
			}
			latencies[jobId] = time.Since(begin)
			_ = bar.Add(1)
			return nil
		})
		elapsed := time.Since(start)
		_ = bar.Finish()

		stats := summarize(latencies)
		fmt.Println()
		fmt.Printf("Requests:    %d (%d failed)\n", requests, failures.Load())
		fmt.Printf("Concurrency: %d\n", concurrent)
		fmt.Printf("Elapsed:     %v\n", elapsed)
		fmt.Printf("Throughput:  %.2f req/s\n", float64(requests)/elapsed.Seconds())
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Min", "Avg", "P50", "P95", "P99", "Max")
		_ = table.Append([]string{
			stats.Min.String(), stats.Avg.String(), stats.P50.String(),
			stats.P95.String(), stats.P99.String(), stats.Max.String(),
		})
		_ = table.Render()
	},
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.Flags().Int("requests", 100, "number of requests")
	benchmarkCmd.Flags().Int("concurrent", 10, "number of concurrent requests")
	benchmarkCmd.Flags().Float64("qps", 0, "maximum requests per second (0 means unlimited)")
	benchmarkCmd.Flags().IntP("limit", "n", 20, "number of recommendations per request")
	benchmarkCmd.Flags().Bool("synthetic", false, "benchmark on a generated dataset")
	benchmarkCmd.Flags().Int64("seed", 0, "random seed of the generated dataset")
}

type latencyStats struct {
	Min time.Duration
	Avg time.Duration
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration
}

// summarize computes latency statistics. Percentiles use the nearest-rank method.
func summarize(latencies []time.Duration) latencyStats {
	if len(latencies) == 0 {
		return latencyStats{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	var total time.Duration
	for _, latency := range sorted {
		total += latency
	}
	percentile := func(p float64) time.Duration {
		rank := int(math.Ceil(p * float64(len(sorted))))
		return sorted[min(max(rank-1, 0), len(sorted)-1)]
	}
	return latencyStats{
		Min: sorted[0],
		Avg: total / time.Duration(len(sorted)),
		P50: percentile(0.50),
		P95: percentile(0.95),
		P99: percentile(0.99),
		Max: sorted[len(sorted)-1],
	}
}
