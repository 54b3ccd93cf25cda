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

// Package predicates holds event filters for the HelmfileDeployment watch,
// following the embedding idiom the pack's predicates use for
// predicate.Funcs.
package predicates

import (
	"fmt"
	"hash/fnv"
	"sort"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

// StructuralChangePredicate suppresses Update events that only touch status,
// by comparing a hash of the fields that actually drive a reconcile:
// finalizers, labels, generation and uid. A status-only patch leaves that
// hash unchanged and is filtered out, the same dedup the original
// implementation's predicate_filter performed before handing an object to
// its reconciler.
type StructuralChangePredicate struct {
	predicate.Funcs
}

// Update returns true only when the structural hash changed between the old
// and new object.
func (StructuralChangePredicate) Update(e event.UpdateEvent) bool {
	if e.ObjectOld == nil || e.ObjectNew == nil {
		return false
	}
	return structuralHash(e.ObjectOld) != structuralHash(e.ObjectNew)
}

func structuralHash(o client.Object) uint64 {
	h := fnv.New64a()

	finalizers := append([]string(nil), o.GetFinalizers()...)
	sort.Strings(finalizers)
	for _, f := range finalizers {
		_, _ = h.Write([]byte(f))
	}

	labels := o.GetLabels()
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte(labels[k]))
	}

	_, _ = fmt.Fprintf(h, "%d", o.GetGeneration())
	_, _ = h.Write([]byte(o.GetUID()))

	return h.Sum64()
}
