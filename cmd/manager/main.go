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

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/util/workqueue"
	ctrl "sigs.k8s.io/controller-runtime"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/ratelimiter"

	"github.com/fluxcd/pkg/runtime/leaderelection"
	"github.com/fluxcd/pkg/runtime/logger"
	sourcev1 "github.com/fluxcd/source-controller/api/v1beta2"

	helmfilev1 "github.com/swoehrl-mw/flux-helmfile-controller/api/v1alpha1"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/action"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/apiserver"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/artifact"
	helmfilecontroller "github.com/swoehrl-mw/flux-helmfile-controller/internal/controller"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/helmfileexec"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/hfmetrics"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/kubeclient"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/reconcile"
	"github.com/swoehrl-mw/flux-helmfile-controller/internal/store"
)

const controllerName = "flux-helmfile-controller"

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(sourcev1.AddToScheme(scheme))
	utilruntime.Must(helmfilev1.AddToScheme(scheme))
}

func main() {
	var (
		listenAddr            string
		concurrent            int
		httpRetry             int
		workDir               string
		rateLimiterMinDelay   time.Duration
		rateLimiterMaxDelay   time.Duration
		logOptions            logger.Options
		leaderElectionOptions leaderelection.Options
	)

	flag.StringVar(&listenAddr, "listen-addr", ":8080", "The address the /health and /metrics endpoints bind to.")
	flag.IntVar(&concurrent, "concurrent", 2, "The number of concurrent HelmfileDeployment reconciles.")
	flag.IntVar(&httpRetry, "http-retry", 3, "The maximum number of retries when fetching GitRepository artifacts.")
	flag.StringVar(&workDir, "work-dir", "tmp", "The directory artifacts are extracted into.")
	flag.DurationVar(&rateLimiterMinDelay, "requeue-min-delay", 5*time.Second, "The minimum requeue delay for the exponential-backoff rate limiter.")
	flag.DurationVar(&rateLimiterMaxDelay, "requeue-max-delay", 300*time.Second, "The maximum requeue delay for the exponential-backoff rate limiter.")

	logOptions.BindFlags(flag.CommandLine)
	leaderElectionOptions.BindFlags(flag.CommandLine)

	flag.Parse()

	// LOGGING_MODE mirrors the original implementation's env-driven switch
	// between plain and JSON encoding; an explicit --log-encoding flag wins.
	if !flag.CommandLine.Changed("log-encoding") {
		logOptions.LogEncoding = "console"
		if strings.ToLower(os.Getenv("LOGGING_MODE")) == "json" {
			logOptions.LogEncoding = "json"
		}
	}

	ctrl.SetLogger(logger.NewLogger(logOptions))
	setupLog := ctrl.Log.WithName("setup")

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: "0", // served by internal/apiserver instead
		},
		HealthProbeBindAddress:        "0",
		LeaderElection:                leaderElectionOptions.Enable,
		LeaderElectionID:              fmt.Sprintf("%s-leader-election", controllerName),
		LeaderElectionNamespace:       leaderElectionOptions.Namespace,
		LeaderElectionReleaseOnCancel: leaderElectionOptions.ReleaseOnCancel,
		LeaseDuration:                 &leaderElectionOptions.LeaseDuration,
		RenewDeadline:                 &leaderElectionOptions.RenewDeadline,
		RetryPeriod:                   &leaderElectionOptions.RetryPeriod,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	metrics := hfmetrics.New()
	st := store.New()
	kc := kubeclient.New(mgr.GetClient())

	tool := helmfileexec.New()
	tool.Log = action.NewDebugLog(setupLog.WithName("helmfile"))

	reconciler := &reconcile.Reconciler{
		Secrets: kc,
		Status:  kc,
		Fetcher: artifact.New(artifact.WithRetries(httpRetry), artifact.WithLogger(setupLog)),
		Tool:    tool,
		Store:   st,
		Metrics: metrics,
		WorkDir: workDir,
		Log:     setupLog,
	}

	r := &helmfilecontroller.HelmfileDeploymentReconciler{
		Client:        mgr.GetClient(),
		EventRecorder: mgr.GetEventRecorderFor(controllerName),
		Reconciler:    reconciler,
		Metrics:       metrics,
		Store:         st,
	}

	limiter := workqueue.NewMaxOfRateLimiter(
		workqueue.NewItemExponentialFailureRateLimiter(rateLimiterMinDelay, rateLimiterMaxDelay),
		&workqueue.BucketRateLimiter{Limiter: rate.NewLimiter(rate.Limit(10), 100)},
	)

	if err := r.SetupWithManager(mgr, helmfilecontroller.Options{
		MaxConcurrentReconciles: concurrent,
		RateLimiter:             ratelimiter.RateLimiter(limiter),
	}); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", helmfilev1.HelmfileDeploymentKind)
		os.Exit(1)
	}

	go func() {
		setupLog.Info("starting health/metrics server", "addr", listenAddr)
		srv := &http.Server{Addr: listenAddr, Handler: apiserver.New(metrics, setupLog)}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			setupLog.Error(err, "health/metrics server failed")
			os.Exit(1)
		}
	}()

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
