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

package controller

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	sourcev1 "github.com/fluxcd/source-controller/api/v1beta2"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
	intreconcile "github.com/swoehrl-mw/flux-helmfile-controller/internal/reconcile"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/store"
)

func TestRequeueActionSuccessUsesSpecInterval(t *testing.T) {
	g := NewWithT(t)
	interval := &metav1.Duration{Duration: 42 * time.Second}

	result := requeueAction(interval, intreconcile.Result{Outcome: intreconcile.OutcomeSuccess})

	g.Expect(result.RequeueAfter).To(Equal(42 * time.Second))
}

func TestRequeueActionSuccessDefaultsIntervalWhenNil(t *testing.T) {
	g := NewWithT(t)

	result := requeueAction(nil, intreconcile.Result{Outcome: intreconcile.OutcomeSuccess})

	g.Expect(result.RequeueAfter).To(Equal(requeueDefaultInterval))
}

func TestRequeueActionFailedUsesErrorInterval(t *testing.T) {
	g := NewWithT(t)

	result := requeueAction(nil, intreconcile.Result{Outcome: intreconcile.OutcomeFailed})

	g.Expect(result.RequeueAfter).To(Equal(requeueErrorInterval))
}

func TestRequeueActionRetriesExhaustedStopsRequeuing(t *testing.T) {
	g := NewWithT(t)

	result := requeueAction(nil, intreconcile.Result{Outcome: intreconcile.OutcomeRetriesExhausted})

	g.Expect(result.RequeueAfter).To(Equal(time.Duration(0)))
	g.Expect(result.Requeue).To(BeFalse())
}

func TestRequeueActionPendingUsesPendingInterval(t *testing.T) {
	g := NewWithT(t)

	result := requeueAction(nil, intreconcile.Result{Outcome: intreconcile.OutcomePending})

	g.Expect(result.RequeueAfter).To(Equal(requeuePendingInterval))
}

func TestRequestsForGitRepositoryChangeMapsStoredHelmfiles(t *testing.T) {
	g := NewWithT(t)
	s := store.New()
	s.PutHelmfileDeployment(&helmfilev1.HelmfileDeployment{
		ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "ns"},
		Spec: helmfilev1.HelmfileDeploymentSpec{
			SourceRef: helmfilev1.SourceReference{Kind: "GitRepository", Name: "repo"},
		},
	})
	r := &HelmfileDeploymentReconciler{Store: s}
	repo := &sourcev1.GitRepository{ObjectMeta: metav1.ObjectMeta{Name: "repo", Namespace: "ns"}}

	reqs := r.requestsForGitRepositoryChange(nil, repo)

	g.Expect(reqs).To(HaveLen(1))
	g.Expect(reqs[0].Namespace).To(Equal("ns"))
	g.Expect(reqs[0].Name).To(Equal("a"))
}

func TestRequestsForGitRepositoryChangeIgnoresOtherKinds(t *testing.T) {
	g := NewWithT(t)
	r := &HelmfileDeploymentReconciler{Store: store.New()}

	reqs := r.requestsForGitRepositoryChange(nil, &helmfilev1.HelmfileDeployment{})

	g.Expect(reqs).To(BeEmpty())
}
