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

// Package reconcile implements the per-object state machine driven by the
// controller harness: given a HelmfileDeployment and its matching
// GitRepository, it prepares decryption material, fetches the artifact,
// runs the external tool, and writes status — independent of
// controller-runtime so it can be unit tested against fakes.
package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	sourcev1 "github.com/fluxcd/source-controller/api/v1beta2"
	"github.com/go-logr/logr"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/artifact"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/decrypt"
	fluxerrors "github.com/swoehrl-mw/flux-helmfile-controller/internal/errors"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/helmfileexec"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/hfmetrics"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/store"
)

// Outcome is the terminal result of one reconcile or cleanup pass.
type Outcome int

const (
	// OutcomeSuccess means the tool ran (or found nothing to do) without error.
	OutcomeSuccess Outcome = iota
	// OutcomeFailed means the tool reported a failure, with retries still available.
	OutcomeFailed
	// OutcomeRetriesExhausted means the tool failed and the configured retry bound was hit.
	OutcomeRetriesExhausted
	// OutcomePending means the referenced GitRepository has no artifact yet.
	OutcomePending
)

// Result is returned by Reconcile and Cleanup.
type Result struct {
	Outcome Outcome
	Reason  string
}

// SecretClient fetches Secret data, implemented by internal/kubeclient.
type SecretClient = decrypt.SecretGetter

// StatusClient writes status and clears the action label, implemented by
// internal/kubeclient.
type StatusClient interface {
	PatchStatus(ctx context.Context, namespace, name string, status helmfilev1.HelmfileDeploymentStatus) error
	ClearActionLabel(ctx context.Context, namespace, name string) error
}

// Fetcher downloads and extracts GitRepository artifacts.
type Fetcher interface {
	FetchAndExtract(workDir string, prior *store.CachedExtraction, a artifact.Artifact) (dir string, digest string, err error)
}

// ToolAdapter runs the external helmfile binary.
type ToolAdapter interface {
	Apply(ctx context.Context, mode helmfileexec.Mode, inv helmfileexec.Invocation) helmfileexec.Result
	Destroy(ctx context.Context, inv helmfileexec.Invocation) helmfileexec.Result
}

// Reconciler runs the reconcile_helmfile/cleanup_helmfile state machine.
type Reconciler struct {
	Secrets SecretClient
	Status  StatusClient
	Fetcher Fetcher
	Tool    ToolAdapter
	Store   *store.Store
	Metrics hfmetrics.Sink
	WorkDir string
	Log     logr.Logger
}

func (r *Reconciler) workDir() string {
	if r.WorkDir == "" {
		return "tmp"
	}
	return r.WorkDir
}

// Reconcile applies the current spec of obj against repo, which must be the
// currently observed GitRepository (possibly with no artifact yet).
func (r *Reconciler) Reconcile(ctx context.Context, obj *helmfilev1.HelmfileDeployment, repo *sourcev1.GitRepository) (Result, error) {
	key := store.NamespacedNameOf(obj)
	log := r.Log.WithValues("helmfiledeployment", key.Name, "namespace", key.Namespace)
	log.Info("starting reconcile")

	prior, hadPrior := r.Store.TakeState(key)
	var priorPtr *store.CachedExtraction
	if hadPrior {
		priorPtr = &prior
	}

	preparedKey, extraEnv, err := r.prepareDecryption(ctx, obj)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if preparedKey != nil {
			_ = preparedKey.Close()
		}
	}()

	if repo == nil || repo.Status.Artifact == nil {
		r.Metrics.ReconcilePending(key.Namespace, key.Name)
		reason := "could not yet find artifact for GitRepository " + obj.Spec.SourceRef.Name + " in namespace " + key.Namespace
		log.Info(reason + ". Requeuing")
		if hadPrior {
			r.Store.PutState(key, prior)
		}
		return Result{Outcome: OutcomePending, Reason: reason}, nil
	}

	a := artifact.Artifact{
		URL:    repo.Status.Artifact.URL,
		Digest: repo.Status.Artifact.Digest,
		Path:   repo.Status.Artifact.Path,
	}
	dir, digest, err := r.Fetcher.FetchAndExtract(r.workDir(), priorPtr, a)
	if err != nil {
		return Result{}, err
	}

	mode := helmfileexec.ModeApply
	isSync := obj.ActionSync()
	if isSync || !obj.HasStatus() {
		mode = helmfileexec.ModeSync
	}

	manifestDir := dir
	if obj.Spec.Path != "" {
		manifestDir = filepath.Join(dir, obj.Spec.Path)
	}

	inv := helmfileexec.Invocation{
		Dir:         manifestDir,
		Environment: obj.Spec.Environment,
		Timeout:     parseTimeout(obj.GetTimeout(), log),
	}
	if obj.Spec.ServiceAccountName != "" {
		inv.KubeAsUser = "system:serviceaccount:" + key.Namespace + ":" + obj.Spec.ServiceAccountName
	}
	if extraEnv != "" {
		inv.ExtraEnv = []string{extraEnv}
	}

	toolResult := r.Tool.Apply(ctx, mode, inv)
	log.Info("got result from helmfile", "outcome", toolResult.Outcome, "reason", toolResult.Reason)

	numRetries := updateRetries(prior.NumRetries, toolResult)
	exhausted := isExhausted(numRetries, obj)

	r.Store.PutState(key, store.CachedExtraction{
		CurrentDigest: digest,
		Dir:           dir,
		NumRetries:    numRetries,
	})
	if hadPrior && prior.Dir != "" && prior.Dir != dir {
		_ = os.RemoveAll(prior.Dir)
	}

	if err := r.updateStatus(ctx, key, toolResult); err != nil {
		return Result{}, err
	}

	if isSync {
		if err := r.Status.ClearActionLabel(ctx, key.Namespace, key.Name); err != nil {
			return Result{}, err
		}
	}

	r.Store.PutHelmfileDeployment(obj)

	log.Info("finished reconcile")
	return mapResult(toolResult, exhausted), nil
}

// Cleanup runs on finalizer removal: it destroys the release using either
// the still-available GitRepository artifact or the last cached extraction.
// It does not check Prune itself; the controller only calls it when Prune
// is set. Whatever the destroy outcome, it reports success so the finalizer
// is removed (destroy failures are logged, not retried; see DESIGN.md);
// only decryption and fetch failures are returned as errors.
func (r *Reconciler) Cleanup(ctx context.Context, obj *helmfilev1.HelmfileDeployment, repo *sourcev1.GitRepository) (Result, error) {
	key := store.NamespacedNameOf(obj)
	log := r.Log.WithValues("helmfiledeployment", key.Name, "namespace", key.Namespace)
	log.Info("starting cleanup")

	preparedKey, extraEnv, err := r.prepareDecryption(ctx, obj)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if preparedKey != nil {
			_ = preparedKey.Close()
		}
	}()

	prior, hadPrior := r.Store.TakeState(key)

	var dir string
	switch {
	case repo != nil && repo.Status.Artifact != nil:
		a := artifact.Artifact{
			URL:    repo.Status.Artifact.URL,
			Digest: repo.Status.Artifact.Digest,
			Path:   repo.Status.Artifact.Path,
		}
		var priorPtr *store.CachedExtraction
		if hadPrior {
			priorPtr = &prior
		}
		d, _, err := r.Fetcher.FetchAndExtract(r.workDir(), priorPtr, a)
		if err != nil {
			return Result{}, err
		}
		dir = d
		if hadPrior && prior.Dir != "" && prior.Dir != dir {
			_ = os.RemoveAll(prior.Dir)
		}
	case hadPrior:
		dir = prior.Dir
	default:
		log.Info("could not cleanup helmfile because source is missing")
		return Result{Outcome: OutcomeSuccess}, nil
	}

	manifestDir := dir
	if obj.Spec.Path != "" {
		manifestDir = filepath.Join(dir, obj.Spec.Path)
	}
	inv := helmfileexec.Invocation{
		Dir:         manifestDir,
		Environment: obj.Spec.Environment,
		Timeout:     parseTimeout(obj.GetTimeout(), log),
	}
	if obj.Spec.ServiceAccountName != "" {
		inv.KubeAsUser = "system:serviceaccount:" + key.Namespace + ":" + obj.Spec.ServiceAccountName
	}
	if extraEnv != "" {
		inv.ExtraEnv = []string{extraEnv}
	}

	result := r.Tool.Destroy(ctx, inv)
	log.Info("finished cleanup", "outcome", result.Outcome, "reason", result.Reason)

	if dir != "" {
		_ = os.RemoveAll(dir)
	}

	return Result{Outcome: OutcomeSuccess}, nil
}

func (r *Reconciler) prepareDecryption(ctx context.Context, obj *helmfilev1.HelmfileDeployment) (*decrypt.PreparedKey, string, error) {
	if obj.Spec.Decryption == nil {
		return nil, "", nil
	}
	switch obj.Spec.Decryption.Provider {
	case "sops-age":
		key, err := decrypt.PrepareAgeKey(ctx, r.Secrets, obj.NamespaceOrDefault(), obj.Spec.Decryption.SecretRef.Name)
		if err != nil {
			return nil, "", err
		}
		return key, key.EnvName + "=" + key.EnvValue, nil
	default:
		return nil, "", fluxerrors.NewInvalidKubernetesObjectError("unsupported decryption provider " + obj.Spec.Decryption.Provider)
	}
}

func (r *Reconciler) updateStatus(ctx context.Context, key store.NamespacedName, result helmfileexec.Result) error {
	var status helmfilev1.HelmfileDeploymentStatus
	switch result.Outcome {
	case helmfileexec.OutcomeNoChange:
		return nil
	case helmfileexec.OutcomeApplied:
		status = helmfilev1.HelmfileDeploymentStatus{
			Status:     helmfilev1.DeploymentSuccessful,
			LastUpdate: timestampNow(),
		}
	case helmfileexec.OutcomeFailed:
		status = helmfilev1.HelmfileDeploymentStatus{
			Status:     helmfilev1.DeploymentFailed,
			Reason:     result.Reason,
			LastUpdate: timestampNow(),
		}
	}
	return r.Status.PatchStatus(ctx, key.Namespace, key.Name, status)
}

func updateRetries(prior *int32, result helmfileexec.Result) *int32 {
	if !result.Failed() {
		return nil
	}
	var next int32
	if prior != nil {
		next = *prior + 1
	}
	return &next
}

func isExhausted(numRetries *int32, obj *helmfilev1.HelmfileDeployment) bool {
	if numRetries == nil {
		return false
	}
	allowed, ok := obj.GetRetries()
	if !ok {
		return false
	}
	if allowed > 0 {
		return *numRetries >= allowed
	}
	return allowed == 0
}

func mapResult(result helmfileexec.Result, exhausted bool) Result {
	switch result.Outcome {
	case helmfileexec.OutcomeApplied, helmfileexec.OutcomeNoChange:
		return Result{Outcome: OutcomeSuccess}
	default:
		if exhausted {
			return Result{Outcome: OutcomeRetriesExhausted, Reason: result.Reason}
		}
		return Result{Outcome: OutcomeFailed, Reason: result.Reason}
	}
}

func parseTimeout(value string, log logr.Logger) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Info("could not parse timeout, using default", "value", value, "error", err.Error())
		return 10 * time.Minute
	}
	return d
}

func timestampNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
