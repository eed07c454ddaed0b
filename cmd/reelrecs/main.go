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
	"io"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/pipeline"
	"github.com/gorse-io/reelrecs/scorer"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "reelrecs",
	Short: "Movie recommendations over the MovieLens dataset",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

func init() {
	log.AddFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCmd.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "directory of the MovieLens dataset")
	rootCmd.PersistentFlags().Bool("local-scorer", false, "score candidates in process instead of calling the scoring service")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

// loadConfig loads the configuration file and applies command line overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.String("config", configPath), zap.Error(err))
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Dataset.Dir, _ = cmd.Flags().GetString("data-dir")
	}
	return cfg
}

// setupTracing installs the global tracer provider. The returned function
// flushes pending spans.
func setupTracing(cfg *config.Config) func() {
	tp, err := cfg.Tracing.NewTracerProvider()
	if err != nil {
		log.Logger().Fatal("failed to create trace provider", zap.Error(err))
	}
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(log.GetErrorHandler())
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return func() { shutdownTracing(tp) }
}

func shutdownTracing(tp *tracesdk.TracerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Logger().Error("failed to shutdown trace provider", zap.Error(err))
	}
}

func loadIndex(cfg *config.Config) *dataset.Index {
	start := time.Now()
	index, err := dataset.LoadMovieLens(cfg.Dataset.Dir, dataset.WithJobs(cfg.Pipeline.NumJobs))
	if err != nil {
		log.Logger().Fatal("failed to load dataset", zap.String("dir", cfg.Dataset.Dir), zap.Error(err))
	}
	log.Logger().Info("load dataset",
		zap.String("dir", cfg.Dataset.Dir),
		zap.Int("n_users", index.CountUsers()),
		zap.Int("n_movies", index.CountMovies()),
		zap.Int("n_ratings", index.CountRatings()),
		zap.Duration("elapsed", time.Since(start)))
	return index
}

// newScorer connects to the scoring service, or scores in process if
// --local-scorer is set.
func newScorer(cmd *cobra.Command, cfg *config.Config) (scorer.Scorer, io.Closer) {
	if local, _ := cmd.Flags().GetBool("local-scorer"); local {
		return scorer.NewLinearScorer(), io.NopCloser(nil)
	}
	client, err := scorer.NewClient(cfg.Scorer)
	if err != nil {
		log.Logger().Fatal("failed to create scoring client", zap.Error(err))
	}
	return client, client
}

func newPipeline(cmd *cobra.Command, cfg *config.Config, index *dataset.Index) (*pipeline.Pipeline, io.Closer) {
	s, closer := newScorer(cmd, cfg)
	p, err := pipeline.New(index, cfg, s)
	if err != nil {
		log.Logger().Fatal("failed to create pipeline", zap.Error(errors.Trace(err)))
	}
	return p, closer
}
