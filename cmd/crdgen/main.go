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

// Command crdgen writes the HelmfileDeployment CustomResourceDefinition
// manifest, the Go counterpart of the original implementation's devhelper
// binary (which asked kube-rs to print its derived CRD as YAML).
package main

import (
	"fmt"
	"os"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
)

const outputPath = "config/crd/helmfiledeployments.yaml"

func main() {
	fmt.Println("Generating CRD")

	crd := buildCRD()

	out, err := yaml.Marshal(crd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not generate yaml from CRD definition:", err)
		os.Exit(1)
	}

	if err := os.MkdirAll("config/crd", 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create config/crd:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write crd yaml to", outputPath, ":", err)
		os.Exit(1)
	}
}

func buildCRD() *apiextensionsv1.CustomResourceDefinition {
	preserveFields := true
	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apiextensions.k8s.io/v1",
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: "helmfiledeployments." + helmfilev1.GroupVersion.Group,
		},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: helmfilev1.GroupVersion.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Kind:     helmfilev1.HelmfileDeploymentKind,
				ListKind: helmfilev1.HelmfileDeploymentKind + "List",
				Plural:   "helmfiledeployments",
				Singular: "helmfiledeployment",
				ShortNames: []string{
					"hfd",
				},
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    helmfilev1.GroupVersion.Version,
					Served:  true,
					Storage: true,
					Subresources: &apiextensionsv1.CustomResourceSubresources{
						Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
					},
					AdditionalPrinterColumns: []apiextensionsv1.CustomResourceColumnDefinition{
						{Name: "Status", Type: "string", JSONPath: ".status.status"},
						{Name: "Reason", Type: "string", JSONPath: ".status.reason"},
						{Name: "LastUpdate", Type: "string", JSONPath: ".status.lastUpdate"},
					},
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
							Type: "object",
							XPreserveUnknownFields: &preserveFields,
							Properties: map[string]apiextensionsv1.JSONSchemaProps{
								"spec":   specSchema(),
								"status": statusSchema(),
							},
						},
					},
				},
			},
		},
	}
}

func specSchema() apiextensionsv1.JSONSchemaProps {
	return apiextensionsv1.JSONSchemaProps{
		Type:     "object",
		Required: []string{"sourceRef"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"interval": {Type: "string"},
			"sourceRef": {
				Type:     "object",
				Required: []string{"kind", "name"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"kind": {Type: "string", Enum: []apiextensionsv1.JSON{{Raw: []byte(`"GitRepository"`)}}},
					"name": {Type: "string"},
				},
			},
			"path":        {Type: "string"},
			"environment": {Type: "string"},
			"decryption": {
				Type:     "object",
				Required: []string{"provider", "secretRef"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"provider": {Type: "string", Enum: []apiextensionsv1.JSON{{Raw: []byte(`"sops-age"`)}}},
					"secretRef": {
						Type:     "object",
						Required: []string{"name"},
						Properties: map[string]apiextensionsv1.JSONSchemaProps{
							"name": {Type: "string"},
						},
					},
				},
			},
			"options": {
				Type: "object",
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"timeout": {Type: "string"},
					"retries": {Type: "integer", Format: "int32"},
					"prune":   {Type: "boolean"},
				},
			},
			"serviceAccountName": {Type: "string"},
		},
	}
}

func statusSchema() apiextensionsv1.JSONSchemaProps {
	return apiextensionsv1.JSONSchemaProps{
		Type: "object",
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"status":     {Type: "string", Enum: []apiextensionsv1.JSON{{Raw: []byte(`"successful"`)}, {Raw: []byte(`"failed"`)}, {Raw: []byte(`"pending"`)}}},
			"reason":     {Type: "string"},
			"lastUpdate": {Type: "string"},
		},
	}
}
