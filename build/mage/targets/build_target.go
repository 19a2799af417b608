// Copyright (c) 2020-2021, Ctrl IQ, Inc. All rights reserved
// SPDX-License-Identifier: BSD-3-Clause

package targets

import (
	"os"
	"strings"

	"github.com/ctrl-cmd/gobuild"
)

// ldFlags returns linker flags passed to Go command.
func ldFlags() string {
	flags := []string{
		"-X main.version=" + getVersion(),
		"-w -extldflags \"-static\"",
	}
	return strings.Join(flags, " ")
}

// Install installs hkpd server using `go install`.
func Install() error {
	return gobuild.RunInstall("-ldflags", ldFlags(), "./cmd/hkpd/")
}

// Build builds hkpd binary using `go build`.
func Build() error {
	return gobuild.RunBuild("-ldflags", ldFlags(), "./cmd/hkpd/")
}

func init() {
	// for static build
	os.Setenv("CGO_ENABLED", "0")
}
