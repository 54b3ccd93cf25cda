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

// Package kubeclient is the reconciler's narrow view of the API server: it
// reads referenced Secrets and writes HelmfileDeployment status/metadata
// patches, keeping the reconciler itself free of controller-runtime types.
package kubeclient

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
	fluxerrors "github.com/swoehrl-mw/flux-helmfile-controller/internal/errors"
)

// FieldManager is the field owner used for status server-side apply
// patches, matching the original implementation's PATCH_OWNER.
const FieldManager = "flux-helmfile-controller"

// Client is the reconciler's API-server adapter.
type Client struct {
	c client.Client
}

// New wraps a controller-runtime client.
func New(c client.Client) *Client {
	return &Client{c: c}
}

// GetSecretData returns a Secret's data, or a MissingSecretError if it does
// not exist.
func (k *Client) GetSecretData(ctx context.Context, namespace, name string) (map[string][]byte, error) {
	secret := &corev1.Secret{}
	err := k.c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret)
	if apierrors.IsNotFound(err) {
		return nil, fluxerrors.NewMissingSecretError("secret " + name + " not found")
	}
	if err != nil {
		return nil, fluxerrors.NewKubernetesClientError(err)
	}
	return secret.Data, nil
}

// PatchStatus server-side applies status onto the named HelmfileDeployment.
func (k *Client) PatchStatus(ctx context.Context, namespace, name string, status helmfilev1.HelmfileDeploymentStatus) error {
	obj := &helmfilev1.HelmfileDeployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: helmfilev1.GroupVersion.String(),
			Kind:       helmfilev1.HelmfileDeploymentKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Status: status,
	}
	err := k.c.Status().Patch(ctx, obj, client.Apply, &client.PatchOptions{
		FieldManager: FieldManager,
		Force:        ptr.To(true),
	})
	if err != nil {
		return fluxerrors.NewKubernetesClientError(err)
	}
	return nil
}

// ClearActionLabel merge-patches the action label to JSON null, the same
// "delete by patching null" trick the original implementation uses rather
// than a read-modify-write of the full label map.
func (k *Client) ClearActionLabel(ctx context.Context, namespace, name string) error {
	obj := &helmfilev1.HelmfileDeployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
	}
	patch := []byte(`{"metadata":{"labels":{"` + helmfilev1.ActionLabel + `":null}}}`)
	if err := k.c.Patch(ctx, obj, client.RawPatch(types.MergePatchType, patch)); err != nil {
		return fluxerrors.NewKubernetesClientError(err)
	}
	return nil
}
