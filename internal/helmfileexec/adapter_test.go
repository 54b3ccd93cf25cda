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

package helmfileexec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

// fakeHelmfile writes a tiny shell script standing in for the real
// "helmfile" binary, so Apply/Destroy can be exercised without the tool
// actually being installed.
func fakeHelmfile(t *testing.T, exitCode int, stderr string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake helmfile script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "helmfile")
	script := "#!/bin/sh\n"
	if stderr != "" {
		script += "echo '" + stderr + "' 1>&2\n"
	}
	script += "exit " + itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func TestApplyNoChange(t *testing.T) {
	g := NewWithT(t)
	a := &Adapter{Binary: fakeHelmfile(t, 0, "")}

	result := a.Apply(context.Background(), ModeApply, Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeNoChange))
	g.Expect(result.Failed()).To(BeFalse())
}

func TestApplyDetectedChange(t *testing.T) {
	g := NewWithT(t)
	a := &Adapter{Binary: fakeHelmfile(t, 2, "")}

	result := a.Apply(context.Background(), ModeApply, Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeApplied))
}

func TestApplyFailure(t *testing.T) {
	g := NewWithT(t)
	a := &Adapter{Binary: fakeHelmfile(t, 1, "boom")}

	result := a.Apply(context.Background(), ModeApply, Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeFailed))
	g.Expect(result.Failed()).To(BeTrue())
	g.Expect(result.Reason).To(ContainSubstring("boom"))
}

func TestApplyFailureUsesLogBufferTail(t *testing.T) {
	g := NewWithT(t)
	if runtime.GOOS == "windows" {
		t.Skip("fake helmfile script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "helmfile")
	script := "#!/bin/sh\necho 'line one' 1>&2\necho 'line two' 1>&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	var captured []string
	a := &Adapter{
		Binary: path,
		Log: func(format string, v ...interface{}) {
			captured = append(captured, fmt.Sprintf(format, v...))
		},
	}

	result := a.Apply(context.Background(), ModeApply, Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeFailed))
	g.Expect(result.Reason).To(ContainSubstring("line one"))
	g.Expect(result.Reason).To(ContainSubstring("line two"))
	g.Expect(captured).To(Equal([]string{"line one", "line two"}))
}

func TestSyncAlwaysApplied(t *testing.T) {
	g := NewWithT(t)
	a := &Adapter{Binary: fakeHelmfile(t, 0, "")}

	result := a.Apply(context.Background(), ModeSync, Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeApplied))
}

func TestDestroySuccess(t *testing.T) {
	g := NewWithT(t)
	a := &Adapter{Binary: fakeHelmfile(t, 0, "")}

	result := a.Destroy(context.Background(), Invocation{Dir: t.TempDir(), Timeout: time.Second})

	g.Expect(result.Outcome).To(Equal(OutcomeApplied))
}

func TestApplyTimeout(t *testing.T) {
	g := NewWithT(t)
	if runtime.GOOS == "windows" {
		t.Skip("fake helmfile script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "helmfile")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 2\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	a := &Adapter{Binary: path}

	result := a.Apply(context.Background(), ModeApply, Invocation{Dir: t.TempDir(), Timeout: 10 * time.Millisecond})

	g.Expect(result.Outcome).To(Equal(OutcomeFailed))
	g.Expect(result.Reason).To(Equal("timeout"))
}

func TestCommonArgsIncludeEnvironmentAndKubeAsUser(t *testing.T) {
	g := NewWithT(t)
	inv := Invocation{Environment: "prod", KubeAsUser: "system:serviceaccount:ns:sa"}

	args := inv.commonArgs()

	g.Expect(args).To(Equal([]string{"-e", "prod", "--args", "--kube-as-user=system:serviceaccount:ns:sa"}))
}
