// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs converter images such as pandoc under docker or
// podman, streaming one document through stdin and stdout per call.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime is a container engine able to run a converter image.
type Runtime interface {
	// Name is the engine binary, "docker" or "podman".
	Name() string

	// Available reports whether the engine is on PATH and its daemon answers.
	Available() bool

	// ImageExists returns an error naming image when it is not pulled locally.
	ImageExists(image string) error

	// Run converts stdin to stdout with a throwaway, network-less container of
	// image. Cancelling ctx kills the engine client.
	Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error
}

// shell runs engine commands; tests replace it.
type shell interface {
	LookPath(file string) (string, error)
	Check(name string, args ...string) error
	Stream(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

type osShell struct{}

func (osShell) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osShell) Check(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (osShell) Stream(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	return cmd.Run()
}

// engine is a Runtime for one binary. docker and podman only disagree on how
// to ask whether an image is present.
type engine struct {
	bin         string
	inspectArgs []string
	sh          shell
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available() bool {
	if _, err := e.sh.LookPath(e.bin); err != nil {
		return false
	}
	return e.sh.Check(e.bin, "info") == nil
}

func (e *engine) ImageExists(image string) error {
	args := append(append([]string{}, e.inspectArgs...), image)
	if err := e.sh.Check(e.bin, args...); err != nil {
		return fmt.Errorf("image %s not available to %s (pull it first): %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := append([]string{"run", "--rm", "-i", "--network", "none", image}, args...)
	if err := e.sh.Stream(ctx, e.bin, full, stdin, stdout); err != nil {
		return fmt.Errorf("%s run %s: %w", e.bin, image, err)
	}
	return nil
}

func newDocker(sh shell) *engine {
	return &engine{bin: binDocker, inspectArgs: []string{"image", "inspect"}, sh: sh}
}

func newPodman(sh shell) *engine {
	return &engine{bin: binPodman, inspectArgs: []string{"image", "exists"}, sh: sh}
}

// DetectRuntime returns docker when it answers, otherwise podman.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(osShell{})
}

func detectRuntime(sh shell) (Runtime, error) {
	for _, e := range []*engine{newDocker(sh), newPodman(sh)} {
		if e.Available() {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available for the pandoc backend: neither %s nor %s answers", binDocker, binPodman)
}
