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

// Package store holds the controller's in-memory, reconcile-to-reconcile
// state: per-object extraction caches (so an unchanged artifact digest
// skips a redundant download) and a mirror of the last-seen objects, used
// by the GitRepository-change mapper to find the HelmfileDeployments that
// depend on a given source without a live API read on the hot path.
package store

import (
	"sync"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
)

// NamespacedName is a lightweight, comparable key usable as a map key,
// distinct from types.NamespacedName only in that it is local to this
// package and carries no import weight beyond itself.
type NamespacedName struct {
	Name      string
	Namespace string
}

// NamespacedNameOf derives a NamespacedName from an object, defaulting an
// empty namespace to DefaultNamespace.
func NamespacedNameOf(obj *helmfilev1.HelmfileDeployment) NamespacedName {
	return NamespacedName{Name: obj.Name, Namespace: obj.NamespaceOrDefault()}
}

// CachedExtraction is the retained artifact extraction for one
// HelmfileDeployment, carried across reconciles so an unchanged digest
// short-circuits the fetch-and-extract step.
type CachedExtraction struct {
	// CurrentDigest identifies the extracted artifact: either the
	// artifact's real digest, or a fabricated key derived from its path
	// when no digest was reported.
	CurrentDigest string

	// Dir is the extraction root on local disk. The caller owns cleanup
	// of the previous Dir once it is superseded or the entry is removed.
	Dir string

	// NumRetries counts the retries made since the last Applied/NoChange
	// outcome: 0 after the first Failed outcome, one more on each further
	// consecutive Failed outcome. Nil means the last outcome was not Failed.
	NumRetries *int32
}

// Store is the controller's reconcile-to-reconcile memory. All methods are
// safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	state     map[NamespacedName]CachedExtraction
	helmfiles map[NamespacedName]*helmfilev1.HelmfileDeployment
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		state:     make(map[NamespacedName]CachedExtraction),
		helmfiles: make(map[NamespacedName]*helmfilev1.HelmfileDeployment),
	}
}

// TakeState removes and returns the cached extraction for key, if any. The
// caller takes ownership of the returned entry's Dir.
func (s *Store) TakeState(key NamespacedName) (CachedExtraction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.state[key]
	if ok {
		delete(s.state, key)
	}
	return state, ok
}

// PutState records the cached extraction for key, replacing any previous
// entry. Callers must have already reconciled ownership of any prior Dir
// (e.g. via TakeState) before calling this.
func (s *Store) PutState(key NamespacedName, state CachedExtraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = state
}

// PeekState returns the cached extraction for key without removing it.
func (s *Store) PeekState(key NamespacedName) (CachedExtraction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.state[key]
	return state, ok
}

// PutHelmfileDeployment records obj as the last-seen object for its key, so
// the GitRepository mapper can find it without a live API read.
func (s *Store) PutHelmfileDeployment(obj *helmfilev1.HelmfileDeployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.helmfiles[NamespacedNameOf(obj)] = obj.DeepCopy()
}

// DeleteHelmfileDeployment removes the last-seen object for key, called on
// cleanup so a deleted object stops being mapped.
func (s *Store) DeleteHelmfileDeployment(key NamespacedName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.helmfiles, key)
}

// MatchingSourceRef returns the keys of all last-seen HelmfileDeployments
// whose spec.sourceRef names the given GitRepository.
func (s *Store) MatchingSourceRef(sourceNamespace, sourceName string) []NamespacedName {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []NamespacedName
	for key, obj := range s.helmfiles {
		if obj.Spec.SourceRef.Kind == helmfilev1.SourceRefKindGitRepository &&
			obj.Spec.SourceRef.Name == sourceName &&
			key.Namespace == sourceNamespace {
			matches = append(matches, key)
		}
	}
	return matches
}
