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

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StageBuildContext = "build_context"
	StageGenerate     = "generate_candidates"
	StageMerge        = "merge"
	StageFilter       = "filter"
	StageFeatures     = "compute_features"
	StageScore        = "score"
	StageRank         = "rank_and_select"
)

var (
	GetRecommendationsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "get_recommendations_seconds",
	})
	StageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "stage_seconds",
	}, []string{"stage"})
	CandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "candidates_total",
	}, []string{"source"})
	FilteredCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "filtered_candidates_total",
	})
	ContextCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "context_cache_hits_total",
	})
	ScoringFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reelrecs",
		Subsystem: "pipeline",
		Name:      "scoring_failures_total",
	})
)
