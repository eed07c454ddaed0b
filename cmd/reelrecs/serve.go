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
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/reelrecs/common/log"
	"github.com/gorse-io/reelrecs/scorer"
	"github.com/gorse-io/reelrecs/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST-ful API server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		defer setupTracing(cfg)()
		index := loadIndex(cfg)
		p, closer := newPipeline(cmd, cfg, index)
		defer closer.Close()

		s := server.NewRestServer(p, cfg)
		go func() {
			waitForSignal()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
		}()
		if err := s.StartHttpServer(); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		log.Logger().Info("stop http server")
	},
}

var scorerCmd = &cobra.Command{
	Use:   "scorer",
	Short: "Start the reference scoring service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		defer setupTracing(cfg)()
		address := cfg.Scorer.Address
		if cmd.Flags().Changed("listen") {
			address, _ = cmd.Flags().GetString("listen")
		}
		lis, err := net.Listen("tcp", address)
		if err != nil {
			log.Logger().Fatal("failed to listen", zap.String("address", address), zap.Error(err))
		}
		s := scorer.NewServer(scorer.NewLinearScorer())
		go func() {
			waitForSignal()
			s.Stop()
		}()
		if err = s.Serve(lis); err != nil {
			log.Logger().Fatal("failed to serve", zap.Error(err))
		}
		log.Logger().Info("stop scoring server")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, scorerCmd)
	scorerCmd.Flags().String("listen", "", "listen address (defaults to scorer.address)")
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
