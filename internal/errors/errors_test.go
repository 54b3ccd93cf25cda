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

package errors

import (
	stderrors "errors"
	"testing"

	. "github.com/onsi/gomega"
)

func TestKubernetesClientErrorUnwrap(t *testing.T) {
	g := NewWithT(t)
	cause := stderrors.New("connection refused")

	err := NewKubernetesClientError(cause)

	g.Expect(stderrors.Is(err, cause)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("connection refused"))

	var target *KubernetesClientError
	g.Expect(stderrors.As(err, &target)).To(BeTrue())
}

func TestArtifactDownloadErrorUnwrap(t *testing.T) {
	g := NewWithT(t)
	cause := stderrors.New("503")

	err := NewArtifactDownloadError(cause)

	g.Expect(stderrors.Is(err, cause)).To(BeTrue())
}

func TestArtifactExtractErrorUnwrap(t *testing.T) {
	g := NewWithT(t)
	cause := stderrors.New("unexpected EOF")

	err := NewArtifactExtractError(cause)

	g.Expect(stderrors.Is(err, cause)).To(BeTrue())
}

func TestCryptoHandlingErrorMessageWithAndWithoutCause(t *testing.T) {
	g := NewWithT(t)
	cause := stderrors.New("permission denied")

	withCause := NewCryptoHandlingError("writing key file", cause)
	g.Expect(withCause.Error()).To(ContainSubstring("writing key file"))
	g.Expect(withCause.Error()).To(ContainSubstring("permission denied"))
	g.Expect(stderrors.Is(withCause, cause)).To(BeTrue())

	withoutCause := NewCryptoHandlingError("no age key configured", nil)
	g.Expect(withoutCause.Error()).To(Equal("Error during handling of crypto keys: no age key configured"))
}

func TestMissingSecretErrorMessage(t *testing.T) {
	g := NewWithT(t)

	err := NewMissingSecretError("secret \"ns/foo\" not found")

	g.Expect(err.Error()).To(ContainSubstring("secret \"ns/foo\" not found"))
}

func TestInvalidKubernetesObjectErrorMessage(t *testing.T) {
	g := NewWithT(t)

	err := NewInvalidKubernetesObjectError("GitRepository has no status.artifact")

	g.Expect(err.Error()).To(ContainSubstring("GitRepository has no status.artifact"))
}
