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
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Version is overridden via ldflags on release builds.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(buildInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func buildInfo() string {
	revision, buildTime := "unknown", "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			}
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Version:\t%s\n", Version)
	fmt.Fprintf(&sb, "Go version:\t%s\n", runtime.Version())
	fmt.Fprintf(&sb, "Git commit:\t%s\n", revision)
	fmt.Fprintf(&sb, "Built:\t\t%s\n", buildTime)
	fmt.Fprintf(&sb, "OS/Arch:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	return sb.String()
}
