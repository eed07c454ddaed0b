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

package config

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/reelrecs/common/log"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Config is the configuration for the recommender.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Thunder  ThunderConfig  `mapstructure:"thunder"`
	Phoenix  PhoenixConfig  `mapstructure:"phoenix"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Features FeaturesConfig `mapstructure:"features"`
	Scorer   ScorerConfig   `mapstructure:"scorer"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Server   ServerConfig   `mapstructure:"server"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type DatasetConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ThunderConfig configures the collaborative candidate source.
type ThunderConfig struct {
	HighRatingThreshold float64 `mapstructure:"high_rating_threshold" validate:"gte=1,lte=5"`
	MinSharedMovies     int     `mapstructure:"min_shared_movies" validate:"gt=0"`
	MaxNeighbors        int     `mapstructure:"max_neighbors" validate:"gt=0"`
	Candidates          int     `mapstructure:"candidates" validate:"gt=0"`
}

// PhoenixConfig configures the discovery candidate source.
type PhoenixConfig struct {
	MinAvgRating   float64 `mapstructure:"min_avg_rating" validate:"gte=0,lte=5"`
	MinRatingCount int     `mapstructure:"min_rating_count" validate:"gte=0"`
	TopGenres      int     `mapstructure:"top_genres" validate:"gt=0"`
	EraWindow      int     `mapstructure:"era_window" validate:"gte=0"`
	Candidates     int     `mapstructure:"candidates" validate:"gt=0"`
}

type FilterConfig struct {
	MinAvgRating   float64 `mapstructure:"min_avg_rating" validate:"gte=0,lte=5"`
	MinRatingCount int     `mapstructure:"min_rating_count" validate:"gte=0"`
	TopGenres      int     `mapstructure:"top_genres" validate:"gt=0"`
	// RecencyWindow keeps movies within this many years of the preferred era. Zero disables it.
	RecencyWindow int `mapstructure:"recency_window" validate:"gte=0"`
	// Expression is an optional boolean expr-lang predicate over candidates.
	Expression string `mapstructure:"expression"`
}

type FeaturesConfig struct {
	ReferenceYear int `mapstructure:"reference_year" validate:"gt=0"`
}

type ScorerConfig struct {
	Address string        `mapstructure:"address" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type PipelineConfig struct {
	NumJobs int `mapstructure:"num_jobs" validate:"gt=0"`
	// ContextCacheSize is the number of user contexts kept between requests. Zero
	// disables the cache.
	ContextCacheSize int           `mapstructure:"context_cache_size" validate:"gte=0"`
	ContextCacheTTL  time.Duration `mapstructure:"context_cache_ttl" validate:"gte=0"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	DefaultN int    `mapstructure:"default_n" validate:"gt=0"`
}

type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=otlp otlphttp zipkin"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Dir: "data/ml-1m",
		},
		Thunder: ThunderConfig{
			HighRatingThreshold: 4.0,
			MinSharedMovies:     3,
			MaxNeighbors:        500,
			Candidates:          300,
		},
		Phoenix: PhoenixConfig{
			MinAvgRating:   3.5,
			MinRatingCount: 10,
			TopGenres:      3,
			EraWindow:      5,
			Candidates:     200,
		},
		Filter: FilterConfig{
			MinAvgRating:   3.5,
			MinRatingCount: 10,
			TopGenres:      3,
		},
		Features: FeaturesConfig{
			ReferenceYear: 2026,
		},
		Scorer: ScorerConfig{
			Address: "localhost:50051",
			Timeout: 5 * time.Second,
		},
		Pipeline: PipelineConfig{
			NumJobs:          runtime.GOMAXPROCS(0),
			ContextCacheSize: 10000,
			ContextCacheTTL:  10 * time.Minute,
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			DefaultN: 20,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func (config *TracingConfig) NewTracerProvider() (*tracesdk.TracerProvider, error) {
	if !config.EnableTracing {
		return tracesdk.NewTracerProvider(tracesdk.WithSampler(tracesdk.NeverSample())), nil
	}

	var exporter tracesdk.SpanExporter
	var err error
	switch config.Exporter {
	case "otlp":
		exporter, err = otlptracegrpc.New(context.TODO(),
			otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
	case "otlphttp":
		exporter, err = otlptracehttp.New(context.TODO(),
			otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
	default:
		return nil, errors.NotSupportedf("exporter %s", config.Exporter)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %s", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(sampler),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(attribute.String("service.name", "reelrecs"))),
	), nil
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.dir", defaultConfig.Dataset.Dir)
	// [thunder]
	viper.SetDefault("thunder.high_rating_threshold", defaultConfig.Thunder.HighRatingThreshold)
	viper.SetDefault("thunder.min_shared_movies", defaultConfig.Thunder.MinSharedMovies)
	viper.SetDefault("thunder.max_neighbors", defaultConfig.Thunder.MaxNeighbors)
	viper.SetDefault("thunder.candidates", defaultConfig.Thunder.Candidates)
	// [phoenix]
	viper.SetDefault("phoenix.min_avg_rating", defaultConfig.Phoenix.MinAvgRating)
	viper.SetDefault("phoenix.min_rating_count", defaultConfig.Phoenix.MinRatingCount)
	viper.SetDefault("phoenix.top_genres", defaultConfig.Phoenix.TopGenres)
	viper.SetDefault("phoenix.era_window", defaultConfig.Phoenix.EraWindow)
	viper.SetDefault("phoenix.candidates", defaultConfig.Phoenix.Candidates)
	// [filter]
	viper.SetDefault("filter.min_avg_rating", defaultConfig.Filter.MinAvgRating)
	viper.SetDefault("filter.min_rating_count", defaultConfig.Filter.MinRatingCount)
	viper.SetDefault("filter.top_genres", defaultConfig.Filter.TopGenres)
	viper.SetDefault("filter.recency_window", defaultConfig.Filter.RecencyWindow)
	viper.SetDefault("filter.expression", defaultConfig.Filter.Expression)
	// [features]
	viper.SetDefault("features.reference_year", defaultConfig.Features.ReferenceYear)
	// [scorer]
	viper.SetDefault("scorer.address", defaultConfig.Scorer.Address)
	viper.SetDefault("scorer.timeout", defaultConfig.Scorer.Timeout)
	// [pipeline]
	viper.SetDefault("pipeline.num_jobs", defaultConfig.Pipeline.NumJobs)
	viper.SetDefault("pipeline.context_cache_size", defaultConfig.Pipeline.ContextCacheSize)
	viper.SetDefault("pipeline.context_cache_ttl", defaultConfig.Pipeline.ContextCacheTTL)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	// [tracing]
	viper.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	viper.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	viper.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	viper.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	viper.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML file. An empty path yields the
// defaults. Environment variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	setDefault()

	// bind environment bindings
	bindings := []configBinding{
		{"dataset.dir", "REELRECS_DATASET_DIR"},
		{"scorer.address", "REELRECS_SCORER_ADDRESS"},
		{"scorer.timeout", "REELRECS_SCORER_TIMEOUT"},
		{"server.host", "REELRECS_SERVER_HOST"},
		{"server.port", "REELRECS_SERVER_PORT"},
		{"pipeline.num_jobs", "REELRECS_PIPELINE_JOBS"},
		{"tracing.collector_endpoint", "REELRECS_COLLECTOR_ENDPOINT"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
	viper.SetEnvPrefix("REELRECS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// load config file
	if path != "" {
		viper.SetConfigType("toml")
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
