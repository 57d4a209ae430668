//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles both executables into ./bin.
func Build() error {
	mg.Deps(BuildGiraffe, BuildBetascan)
	fmt.Println("Compilation finished")
	return nil
}

func BuildGiraffe() error {
	fmt.Println("Building giraffe executable...")
	return goCommand("build", "-o", "./bin/giraffe", "./giraffe")
}

func BuildBetascan() error {
	fmt.Println("Building betascan executable...")
	return goCommand("build", "-o", "./bin/betascan", "./betascan")
}

// Test runs the unit tests of every package.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...")
}

// The HDF5 bindings need cgo, CGO_CFLAGS and CGO_LDFLAGS are passed through
// so a local HDF5 installation can be used.
func goCommand(args ...string) error {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
