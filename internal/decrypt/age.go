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

// Package decrypt prepares the environment needed to let the external tool
// decrypt sops-age secrets: it fetches the referenced Secret, writes its key
// material to a scoped temp file, and returns the environment variable
// binding the tool expects.
package decrypt

import (
	"context"
	"os"

	fluxerrors "github.com/swoehrl-mw/flux-helmfile-controller/internal/errors"
)

// AgeSecretKey is the data key the referenced Secret must carry.
const AgeSecretKey = "age.agekey"

// AgeEnvVar is the environment variable sops looks for a key file at.
const AgeEnvVar = "SOPS_AGE_KEY_FILE"

// SecretGetter reads a single opaque Secret's data by name.
type SecretGetter interface {
	GetSecretData(ctx context.Context, namespace, name string) (map[string][]byte, error)
}

// PreparedKey is the material produced by PrepareAgeKey. Close removes the
// backing temp file; callers must call it once they are done invoking the
// external tool.
type PreparedKey struct {
	EnvName  string
	EnvValue string

	path string
}

// Close removes the temporary key file.
func (k *PreparedKey) Close() error {
	if k == nil || k.path == "" {
		return nil
	}
	return os.Remove(k.path)
}

// PrepareAgeKey fetches secretName from namespace via client, requires it to
// carry AgeSecretKey, writes that value to a private temp file, and returns
// the SOPS_AGE_KEY_FILE binding pointing at it.
func PrepareAgeKey(ctx context.Context, client SecretGetter, namespace, secretName string) (*PreparedKey, error) {
	data, err := client.GetSecretData(ctx, namespace, secretName)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fluxerrors.NewMissingSecretError("could not get data from secret " + secretName)
	}
	value, ok := data[AgeSecretKey]
	if !ok {
		return nil, fluxerrors.NewMissingSecretError("secret " + secretName + " does not have key " + AgeSecretKey)
	}

	f, err := os.CreateTemp("", "sops-age-key-")
	if err != nil {
		return nil, fluxerrors.NewCryptoHandlingError("could not create temporary key file", err)
	}
	defer f.Close()

	if _, err := f.Write(value); err != nil {
		_ = os.Remove(f.Name())
		return nil, fluxerrors.NewCryptoHandlingError("could not write temporary key file", err)
	}

	return &PreparedKey{EnvName: AgeEnvVar, EnvValue: f.Name(), path: f.Name()}, nil
}
