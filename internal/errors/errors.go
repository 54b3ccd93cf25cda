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

// Package errors defines the closed set of error kinds the reconciler and
// its capability adapters (artifact fetcher, helmfile adapter, decrypt
// preparer, Kubernetes client) return. Every kind wraps an inner error so
// callers can still use errors.Is/errors.As against the underlying cause.
package errors

import "fmt"

// KubernetesClientError wraps a failure talking to the API server (get,
// list, patch) that is not itself a NotFound.
type KubernetesClientError struct {
	Err error
}

func (e *KubernetesClientError) Error() string {
	return fmt.Sprintf("KubernetesClientError: %v", e.Err)
}

func (e *KubernetesClientError) Unwrap() error { return e.Err }

// NewKubernetesClientError wraps err as a KubernetesClientError.
func NewKubernetesClientError(err error) error {
	return &KubernetesClientError{Err: err}
}

// InvalidKubernetesObjectError is returned when an object read back from the
// API server carries a value the reconciler cannot handle (e.g. an
// unsupported decryption provider).
type InvalidKubernetesObjectError struct {
	Reason string
}

func (e *InvalidKubernetesObjectError) Error() string {
	return fmt.Sprintf("InvalidKubernetesObject: %s", e.Reason)
}

// NewInvalidKubernetesObjectError builds an InvalidKubernetesObjectError.
func NewInvalidKubernetesObjectError(reason string) error {
	return &InvalidKubernetesObjectError{Reason: reason}
}

// ArtifactDownloadError wraps a failure fetching an artifact archive over
// HTTP (non-2xx status, transport error, retries exhausted).
type ArtifactDownloadError struct {
	Err error
}

func (e *ArtifactDownloadError) Error() string {
	return fmt.Sprintf("ArtifactDownloadError: %v", e.Err)
}

func (e *ArtifactDownloadError) Unwrap() error { return e.Err }

// NewArtifactDownloadError wraps err as an ArtifactDownloadError.
func NewArtifactDownloadError(err error) error {
	return &ArtifactDownloadError{Err: err}
}

// ArtifactExtractError wraps a failure unpacking a downloaded archive
// (gzip/tar decode error, size-limit exceeded, disk I/O error).
type ArtifactExtractError struct {
	Err error
}

func (e *ArtifactExtractError) Error() string {
	return fmt.Sprintf("ArtifactArchiveExtractError: %v", e.Err)
}

func (e *ArtifactExtractError) Unwrap() error { return e.Err }

// NewArtifactExtractError wraps err as an ArtifactExtractError.
func NewArtifactExtractError(err error) error {
	return &ArtifactExtractError{Err: err}
}

// MissingSecretError is returned when a referenced Secret, or a required key
// within it, cannot be found.
type MissingSecretError struct {
	Reason string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("Missing or error accessing secret: %s", e.Reason)
}

// NewMissingSecretError builds a MissingSecretError.
func NewMissingSecretError(reason string) error {
	return &MissingSecretError{Reason: reason}
}

// CryptoHandlingError wraps a failure preparing decryption key material
// (writing the temp key file, binding the provider's environment variable).
type CryptoHandlingError struct {
	Reason string
	Err    error
}

func (e *CryptoHandlingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error during handling of crypto keys: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("Error during handling of crypto keys: %s", e.Reason)
}

func (e *CryptoHandlingError) Unwrap() error { return e.Err }

// NewCryptoHandlingError builds a CryptoHandlingError.
func NewCryptoHandlingError(reason string, err error) error {
	return &CryptoHandlingError{Reason: reason, Err: err}
}
