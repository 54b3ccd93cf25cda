/*
Copyright 2023 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package helmfileexec wraps the external `helmfile` binary, translating
// its exit codes into an applied/no-change/failed outcome and bounding each
// invocation with a timeout that is killed on expiry.
package helmfileexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/swoehrl-mw/flux-helmfile-controller/internal/action"
)

// Mode selects which helmfile subcommand Apply runs.
type Mode int

const (
	// ModeApply runs `helmfile apply`, used on steady-state reconciles.
	ModeApply Mode = iota
	// ModeSync runs `helmfile sync`, used on first reconcile and whenever
	// the one-shot sync action label is set.
	ModeSync
)

// Outcome is the result of a single Apply or Destroy invocation.
type Outcome int

const (
	// OutcomeApplied means changes were made (or destroy succeeded).
	OutcomeApplied Outcome = iota
	// OutcomeNoChange means the apply found nothing to do.
	OutcomeNoChange
	// OutcomeFailed means the tool exited with an unexpected status; Reason
	// carries a tail of its stderr.
	OutcomeFailed
)

// Result is the outcome of one invocation.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Failed reports whether the outcome is OutcomeFailed.
func (r Result) Failed() bool { return r.Outcome == OutcomeFailed }

// Invocation describes one helmfile apply/sync/destroy run.
type Invocation struct {
	// Dir is the extracted artifact directory (or its Path sub-directory)
	// to run helmfile in.
	Dir string
	// Environment is passed as `helmfile -e <environment>` when non-empty.
	Environment string
	// KubeAsUser, when non-empty, is passed as
	// `--args --kube-as-user=<value>`.
	KubeAsUser string
	// Timeout bounds the invocation; the process is killed on expiry.
	Timeout time.Duration
	// ExtraEnv is appended to the subprocess environment, used to bind
	// SOPS_AGE_KEY_FILE when decryption is configured.
	ExtraEnv []string
}

// Adapter runs the external helmfile binary.
type Adapter struct {
	// Binary is the executable name or path, defaulting to "helmfile".
	Binary string
	// Log, when set, receives each stderr line of a failed invocation via a
	// fresh LogBuffer per call; its deduplicated String() becomes
	// Result.Reason instead of the raw output. A fresh buffer per invocation
	// (rather than one shared across the Adapter) keeps concurrent
	// reconciles from interleaving into the same ring.
	Log action.DebugLog
}

// New returns an Adapter invoking the "helmfile" binary found on PATH.
func New() *Adapter {
	return &Adapter{Binary: "helmfile"}
}

func (a *Adapter) binary() string {
	if a.Binary == "" {
		return "helmfile"
	}
	return a.Binary
}

// failureReason turns raw stderr into a Result.Reason, feeding it through
// Log first when one is configured so runs of consecutive identical lines in
// this invocation's output collapse into a deduplicated tail.
func (a *Adapter) failureReason(out string) string {
	if a.Log == nil {
		return out
	}
	buf := action.NewLogBuffer(a.Log, 0)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		buf.Log("%s", line)
	}
	if s := buf.String(); s != "" {
		return s
	}
	return out
}

// Apply runs `helmfile apply` or `helmfile sync` depending on mode.
func (a *Adapter) Apply(ctx context.Context, mode Mode, inv Invocation) Result {
	var args []string
	switch mode {
	case ModeApply:
		args = append(args, "apply", "--skip-diff-on-install", "--suppress-diff", "--detailed-exitcode")
	case ModeSync:
		args = append(args, "sync")
	}
	args = append(args, inv.commonArgs()...)

	out, exitCode, err := a.run(ctx, inv, args)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	switch {
	case exitCode == 2:
		return Result{Outcome: OutcomeApplied}
	case exitCode == 0 && mode == ModeApply:
		return Result{Outcome: OutcomeNoChange}
	case exitCode == 0 && mode == ModeSync:
		return Result{Outcome: OutcomeApplied}
	default:
		return Result{Outcome: OutcomeFailed, Reason: a.failureReason(out)}
	}
}

// Destroy runs `helmfile destroy`.
func (a *Adapter) Destroy(ctx context.Context, inv Invocation) Result {
	args := append([]string{"destroy"}, inv.commonArgs()...)

	out, exitCode, err := a.run(ctx, inv, args)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}
	}
	if exitCode == 0 {
		return Result{Outcome: OutcomeApplied}
	}
	return Result{Outcome: OutcomeFailed, Reason: a.failureReason(out)}
}

func (inv Invocation) commonArgs() []string {
	var args []string
	if inv.Environment != "" {
		args = append(args, "-e", inv.Environment)
	}
	if inv.KubeAsUser != "" {
		args = append(args, "--args", fmt.Sprintf("--kube-as-user=%s", inv.KubeAsUser))
	}
	return args
}

// run executes the binary with args in inv.Dir, bounded by inv.Timeout,
// returning the captured stderr, the process exit code, and a non-nil error
// only for timeouts or failures to start the process at all.
func (a *Adapter) run(ctx context.Context, inv Invocation, args []string) (string, int, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.binary(), args...)
	cmd.Dir = inv.Dir
	if len(inv.ExtraEnv) > 0 {
		cmd.Env = append(cmd.Environ(), inv.ExtraEnv...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "timeout", -1, errors.New("timeout")
	}
	if err == nil {
		return stderr.String(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stderr.String(), exitErr.ExitCode(), nil
	}
	return stderr.String(), -1, err
}
