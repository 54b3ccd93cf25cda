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

package v1alpha1

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestHasStatusFalseForZeroValue(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}

	g.Expect(obj.HasStatus()).To(BeFalse())

	obj.Status.Status = DeploymentSuccessful
	g.Expect(obj.HasStatus()).To(BeTrue())
}

func TestActionSyncReadsLabel(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}
	g.Expect(obj.ActionSync()).To(BeFalse())

	obj.Labels = map[string]string{ActionLabel: ActionLabelSync}
	g.Expect(obj.ActionSync()).To(BeTrue())

	obj.Labels[ActionLabel] = "something-else"
	g.Expect(obj.ActionSync()).To(BeFalse())
}

func TestNamespaceOrDefault(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}
	g.Expect(obj.NamespaceOrDefault()).To(Equal(DefaultNamespace))

	obj.Namespace = "explicit"
	g.Expect(obj.NamespaceOrDefault()).To(Equal("explicit"))
}

func TestGetTimeoutDefaultsWhenUnset(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}
	g.Expect(obj.GetTimeout()).To(Equal("10m"))

	obj.Spec.Options = &HelmfileOptions{Timeout: &metav1.Duration{Duration: 90 * time.Second}}
	g.Expect(obj.GetTimeout()).To(Equal("1m30s"))
}

func TestGetRetriesReportsWhetherSet(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}
	_, ok := obj.GetRetries()
	g.Expect(ok).To(BeFalse())

	var zero int32
	obj.Spec.Options = &HelmfileOptions{Retries: &zero}
	n, ok := obj.GetRetries()
	g.Expect(ok).To(BeTrue())
	g.Expect(n).To(Equal(int32(0)))
}

func TestPruneReportsDestroyOnDelete(t *testing.T) {
	g := NewWithT(t)
	obj := &HelmfileDeployment{}
	g.Expect(obj.Prune()).To(BeFalse())

	obj.Spec.Options = &HelmfileOptions{Prune: true}
	g.Expect(obj.Prune()).To(BeTrue())
}

func TestDeepCopyProducesIndependentObject(t *testing.T) {
	g := NewWithT(t)
	var retries int32 = 3
	original := &HelmfileDeployment{
		Spec: HelmfileDeploymentSpec{
			SourceRef: SourceReference{Kind: "GitRepository", Name: "repo"},
			Options:   &HelmfileOptions{Retries: &retries},
		},
	}

	copied := original.DeepCopy()
	copied.Spec.SourceRef.Name = "other-repo"
	*copied.Spec.Options.Retries = 7

	g.Expect(original.Spec.SourceRef.Name).To(Equal("repo"))
	g.Expect(*original.Spec.Options.Retries).To(Equal(int32(3)))
}
