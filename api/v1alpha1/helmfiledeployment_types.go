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
	fluxmeta "github.com/fluxcd/pkg/apis/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// HelmfileDeploymentKind is the kind name of the HelmfileDeployment API.
	HelmfileDeploymentKind = "HelmfileDeployment"

	// HelmfileDeploymentFinalizer is added to a HelmfileDeployment so that
	// the controller can run cleanup (optionally `helmfile destroy`) before
	// the object is actually removed from the API server.
	HelmfileDeploymentFinalizer = "flux.maibornwolff.de"

	// ActionLabel is a transient label a user can set to force the next
	// reconcile to run in sync mode. The controller clears it once honored.
	ActionLabel = "controller/action"

	// ActionLabelSync is the only recognized value for ActionLabel.
	ActionLabelSync = "sync"

	// SourceRefKindGitRepository is the only supported SourceRef.Kind.
	SourceRefKindGitRepository = "GitRepository"

	// DefaultNamespace is used when an object is observed without a
	// namespace populated (should not happen against a real API server,
	// kept for parity with the original implementation's NS constant).
	DefaultNamespace = "default"
)

// DeploymentResult is the outcome recorded in DeploymentStatus.Status.
type DeploymentResult string

const (
	DeploymentSuccessful DeploymentResult = "successful"
	DeploymentFailed     DeploymentResult = "failed"
	DeploymentPending    DeploymentResult = "pending"
)

// SourceReference points at the GitRepository a HelmfileDeployment
// renders its environment from. Kind currently only supports
// GitRepository, mirroring the upstream source-controller API.
type SourceReference struct {
	// Kind of the source, currently only GitRepository is supported.
	// +kubebuilder:validation:Enum=GitRepository
	Kind string `json:"kind"`

	// Name of the source object.
	Name string `json:"name"`
}

// Decryption specifies how to decrypt Helmfile-managed secrets before
// they are used by the external tool. Shaped after kustomize-controller's
// Decryption type.
type Decryption struct {
	// Provider is the decryption engine to use.
	// +kubebuilder:validation:Enum=sops-age
	Provider string `json:"provider"`

	// SecretRef names the Secret holding the decryption key material, in
	// the same namespace as the HelmfileDeployment.
	SecretRef fluxmeta.LocalObjectReference `json:"secretRef"`
}

// HelmfileOptions tunes how the external tool is invoked.
type HelmfileOptions struct {
	// Timeout bounds each external-tool invocation. Defaults to 10m.
	// +optional
	Timeout *metav1.Duration `json:"timeout,omitempty"`

	// Retries bounds how many times a failed apply is retried.
	// 0 means never retry; a negative value or unset means retry forever.
	// +optional
	Retries *int32 `json:"retries,omitempty"`

	// Prune, if true, runs `helmfile destroy` when the object is deleted.
	// +optional
	Prune bool `json:"prune,omitempty"`
}

// HelmfileDeploymentSpec defines the desired state of a HelmfileDeployment.
type HelmfileDeploymentSpec struct {
	// Interval is the steady-state reconcile interval used after a
	// successful apply. Defaults to 300s when unset or unparseable.
	// +optional
	Interval *metav1.Duration `json:"interval,omitempty"`

	// SourceRef points at the GitRepository to render from.
	SourceRef SourceReference `json:"sourceRef"`

	// Path is a sub-directory of the extracted artifact root to run
	// helmfile in. Defaults to the artifact root.
	// +optional
	Path string `json:"path,omitempty"`

	// Environment is the helmfile environment selector (`helmfile -e`).
	// +optional
	Environment string `json:"environment,omitempty"`

	// Decryption configures sops-age decryption of Helmfile secrets.
	// +optional
	Decryption *Decryption `json:"decryption,omitempty"`

	// Options tunes timeout, retries and prune-on-delete behavior.
	// +optional
	Options *HelmfileOptions `json:"options,omitempty"`

	// ServiceAccountName, when set, is impersonated when running the
	// external tool via `--kube-as-user`.
	// +optional
	ServiceAccountName string `json:"serviceAccountName,omitempty"`
}

// HelmfileDeploymentStatus is the observable status subresource.
type HelmfileDeploymentStatus struct {
	// Status is the outcome of the last non-NoChange reconcile.
	// +optional
	Status DeploymentResult `json:"status,omitempty"`

	// Reason carries the failure detail when Status is "failed".
	// +optional
	Reason string `json:"reason,omitempty"`

	// LastUpdate is the RFC3339 (seconds precision) timestamp of the last
	// status write.
	// +optional
	LastUpdate string `json:"lastUpdate,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=hfd

// HelmfileDeployment is the Schema for the helmfiledeployments API.
type HelmfileDeployment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   HelmfileDeploymentSpec   `json:"spec,omitempty"`
	Status HelmfileDeploymentStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// HelmfileDeploymentList contains a list of HelmfileDeployment.
type HelmfileDeploymentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HelmfileDeployment `json:"items"`
}

func init() {
	SchemeBuilder.Register(&HelmfileDeployment{}, &HelmfileDeploymentList{})
}

// HasStatus reports whether the object has ever had its status written.
// Used by the reconciler to decide whether the first-run sync mode applies.
func (in *HelmfileDeployment) HasStatus() bool {
	return in.Status.Status != ""
}

// ActionSync reports whether the one-shot sync action label is set.
func (in *HelmfileDeployment) ActionSync() bool {
	return in.Labels[ActionLabel] == ActionLabelSync
}

// NamespaceOrDefault returns the object's namespace, or DefaultNamespace
// if unset.
func (in *HelmfileDeployment) NamespaceOrDefault() string {
	if in.Namespace == "" {
		return DefaultNamespace
	}
	return in.Namespace
}

// GetTimeout returns the configured timeout, or the 10 minute default.
func (in *HelmfileDeployment) GetTimeout() string {
	if in.Spec.Options != nil && in.Spec.Options.Timeout != nil {
		return in.Spec.Options.Timeout.Duration.String()
	}
	return "10m"
}

// GetRetries returns the configured retry bound and whether one was set.
func (in *HelmfileDeployment) GetRetries() (int32, bool) {
	if in.Spec.Options != nil && in.Spec.Options.Retries != nil {
		return *in.Spec.Options.Retries, true
	}
	return 0, false
}

// Prune reports whether destroy-on-delete is enabled.
func (in *HelmfileDeployment) Prune() bool {
	return in.Spec.Options != nil && in.Spec.Options.Prune
}
