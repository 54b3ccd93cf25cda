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

// Package apiserver exposes the controller's /health and /metrics HTTP
// surface on a single address, separate from the manager's own
// probe/metrics endpoints so the reconciler's own counters can be served
// without pulling controller-runtime's metrics registry into this package.
package apiserver

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/swoehrl-mw/flux-helmfile-controller/internal/hfmetrics"
)

// New builds the HTTP handler serving health and metrics.
func New(metrics *hfmetrics.Metrics, log logr.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", hfmetrics.ContentType)
		if err := metrics.WriteOpenMetrics(w); err != nil {
			log.Error(err, "failed to encode metrics")
			http.Error(w, "failed to encode metrics", http.StatusInternalServerError)
		}
	})
	return mux
}
