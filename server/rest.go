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

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/config"
	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/gorse-io/reelrecs/pipeline"
	"github.com/gorse-io/reelrecs/scorer"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v4emb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const (
	RequestIdHeader = "X-Request-ID"
	profileTopRated = 5
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Pipeline   *pipeline.Pipeline
	Config     *config.Config
	WebService *restful.WebService
	HttpServer *http.Server
}

func NewRestServer(p *pipeline.Pipeline, cfg *config.Config) *RestServer {
	s := &RestServer{
		Pipeline:   p,
		Config:     cfg,
		WebService: new(restful.WebService),
	}
	s.HttpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.handler(),
	}
	return s
}

// MovieDetail is a movie with its rating statistics.
type MovieDetail struct {
	dataset.Movie
	Stats dataset.MovieStats `json:"stats"`
}

// handler registers the REST-ful APIs, the OpenAPI document, the Swagger UI and the
// metrics endpoint.
func (s *RestServer) handler() http.Handler {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle("/apidocs/", v4emb.New("reelrecs", specConfig.APIPath, "/apidocs/"))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer blocks until the server is shut down.
func (s *RestServer) StartHttpServer() error {
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s", s.HttpServer.Addr)))
	if err := s.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

func (s *RestServer) Shutdown(ctx context.Context) error {
	return s.HttpServer.Shutdown(ctx)
}

// RequestIdFilter propagates the request id of the caller or assigns a new one.
func RequestIdFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter(RequestIdHeader)
	if requestId == "" {
		requestId = uuid.NewString()
	}
	resp.Header().Set(RequestIdHeader, requestId)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	elapsed := time.Since(start)
	RestRequestSeconds.WithLabelValues(req.Request.Method, req.SelectedRoutePath(), strconv.Itoa(resp.StatusCode())).
		Observe(elapsed.Seconds())
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("elapsed", elapsed))
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIdFilter)
	ws.Filter(otelrestful.OTelFilter("reelrecs"))
	ws.Filter(LogFilter)

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommendations for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned recommendations").DataType("integer")).
		Returns(http.StatusOK, "OK", []pipeline.Recommendation{}).
		Writes([]pipeline.Recommendation{}))
	ws.Route(ws.GET("/user/{user-id}").To(s.getUser).
		Doc("Get the profile of a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Returns(http.StatusOK, "OK", logics.UserProfile{}).
		Writes(logics.UserProfile{}))
	ws.Route(ws.GET("/movie/{movie-id}").To(s.getMovie).
		Doc("Get a movie.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Returns(http.StatusOK, "OK", MovieDetail{}).
		Writes(MovieDetail{}))
	ws.Route(ws.GET("/movies").To(s.searchMovies).
		Doc("Search movies by title.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.QueryParameter("title", "case-insensitive substring of the title").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Returns(http.StatusOK, "OK", []dataset.Movie{}).
		Writes([]dataset.Movie{}))
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

// parseId parses an identifier from the path parameter.
func parseId(request *restful.Request, name string) (uint32, error) {
	value, err := strconv.ParseUint(request.PathParameter(name), 10, 32)
	if err != nil {
		return 0, errors.NewNotValid(err, name)
	}
	return uint32(value), nil
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	start := time.Now()
	userId, err := parseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if n <= 0 {
		BadRequest(response, errors.NotValidf("n = %d", n))
		return
	}
	recommendations, err := s.Pipeline.GetRecommendations(request.Request.Context(), userId, n)
	if err != nil {
		Error(response, err)
		return
	}
	GetRecommendSeconds.Observe(time.Since(start).Seconds())
	Ok(response, recommendations)
}

func (s *RestServer) getUser(request *restful.Request, response *restful.Response) {
	userId, err := parseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	profile, err := logics.BuildUserProfile(s.Pipeline.Index(), userId, profileTopRated)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, profile)
}

func (s *RestServer) getMovie(request *restful.Request, response *restful.Response) {
	movieId, err := parseId(request, "movie-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	index := s.Pipeline.Index()
	movie, ok := index.GetMovie(movieId)
	if !ok {
		PageNotFound(response, errors.NotFoundf("movie %d", movieId))
		return
	}
	stats, _ := index.GetMovieStats(movieId)
	Ok(response, MovieDetail{Movie: movie, Stats: stats})
}

func (s *RestServer) searchMovies(request *restful.Request, response *restful.Response) {
	title := request.QueryParameter("title")
	if title == "" {
		BadRequest(response, errors.NotValidf("empty title"))
		return
	}
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	movies := s.Pipeline.Index().SearchMovies(title, n)
	if movies == nil {
		movies = []dataset.Movie{}
	}
	Ok(response, movies)
}

// Error writes err with the status code matching its kind.
func Error(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.NotValid):
		BadRequest(response, err)
	case scorer.IsRemoteError(err):
		BadGateway(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// BadGateway returns an error raised by the scoring service.
func BadGateway(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad gateway", zap.Error(err))
	if err = response.WriteError(http.StatusBadGateway, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
