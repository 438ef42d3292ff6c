/*
Copyright 2024.

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
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/syncgate-sh/syncgate/internal/buildinfo"
	"github.com/syncgate-sh/syncgate/internal/cluster"
	"github.com/syncgate-sh/syncgate/internal/detect"
	"github.com/syncgate-sh/syncgate/internal/filter"
	"github.com/syncgate-sh/syncgate/internal/model"
	"github.com/syncgate-sh/syncgate/internal/progress"
	"github.com/syncgate-sh/syncgate/internal/publish"
	"github.com/syncgate-sh/syncgate/internal/publish/pubsub"
	"github.com/syncgate-sh/syncgate/internal/report"
	"github.com/syncgate-sh/syncgate/internal/rollout"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/labels"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

var setupLog = ctrl.Log.WithName("setup")

// config holds all command-line configuration
type config struct {
	app                    string
	selector               string
	namespace              string
	kinds                  string
	deploymentID           string
	appVersion             string
	overallTimeout         time.Duration
	fallbackTimeout        time.Duration
	pollInterval           time.Duration
	progressInterval       time.Duration
	deploymentIDAnnotation string
	versionLabel           string
	requireLabels          string
	excludeLabels          string
	clusterID              string
	outputsFile            string
	webhookURL             string
	pubsubTopic            string
	pushgatewayURL         string
}

func main() {
	cfg, zapOpts := parseFlags()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))

	os.Exit(run(cfg))
}

func parseFlags() (config, zap.Options) {
	var cfg config

	flag.StringVar(&cfg.app, "app", "",
		"Application name; expands to the selector app.kubernetes.io/name=<app> unless --selector is set")
	flag.StringVar(&cfg.selector, "selector", "",
		"Explicit label selector for the workloads to track (e.g. 'app.kubernetes.io/name=api,tier=web')")
	flag.StringVar(&cfg.namespace, "namespace", "default",
		"Namespace the workloads live in")
	flag.StringVar(&cfg.kinds, "kinds", "deployment",
		"Comma-separated workload kinds to consider (deployment, statefulset, daemonset)")
	flag.StringVar(&cfg.deploymentID, "deployment-id", os.Getenv("DEPLOYMENT_ID"),
		"Expected deployment-id annotation value (typically the CI run identifier)")
	flag.StringVar(&cfg.appVersion, "app-version", os.Getenv("APP_VERSION"),
		"Expected application version label value")
	flag.DurationVar(&cfg.overallTimeout, "timeout", 5*time.Minute,
		"Overall time budget for sync detection and rollout tracking combined")
	flag.DurationVar(&cfg.fallbackTimeout, "fallback-timeout", 3*time.Minute,
		"How long the change-driven strategies wait for a visible change before assuming the sync already happened; must not exceed --timeout")
	flag.DurationVar(&cfg.pollInterval, "poll-interval", 5*time.Second,
		"How often cluster state is re-read")
	flag.DurationVar(&cfg.progressInterval, "progress-interval", 30*time.Second,
		"How often a still-waiting progress line is logged")
	flag.StringVar(&cfg.deploymentIDAnnotation, "deployment-id-annotation", cluster.DefaultMarkerKeys().DeploymentIDAnnotation,
		"Annotation carrying the deployment id")
	flag.StringVar(&cfg.versionLabel, "version-label", cluster.DefaultMarkerKeys().VersionLabel,
		"Label carrying the application version")
	flag.StringVar(&cfg.requireLabels, "require-labels", "",
		"Comma-separated list of label keys that must be present on tracked workloads")
	flag.StringVar(&cfg.excludeLabels, "exclude-labels", "",
		"Comma-separated list of label key=value pairs that exclude a workload (e.g., 'syncgate.sh/ignore=true')")
	flag.StringVar(&cfg.clusterID, "cluster-id", os.Getenv("CLUSTER_ID"),
		"Cluster identifier stamped on reports; auto-resolved from cloud metadata when empty")
	flag.StringVar(&cfg.outputsFile, "outputs-file", os.Getenv("GITHUB_OUTPUT"),
		"Path of a key=value outputs file to append report fields to")
	flag.StringVar(&cfg.webhookURL, "webhook-url", "",
		"URL to POST the final report to")
	flag.StringVar(&cfg.pubsubTopic, "pubsub-topic", os.Getenv("PUBSUB_TOPIC"),
		"Google Cloud Pub/Sub topic path (projects/<project>/topics/<topic>) to publish the final report to")
	flag.StringVar(&cfg.pushgatewayURL, "pushgateway-url", "",
		"Prometheus Pushgateway URL to push gate result metrics to")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	return cfg, opts
}

func run(cfg config) int {
	ctx := ctrl.SetupSignalHandler()

	detectCfg := detect.Config{
		ExpectedDeploymentID: cfg.deploymentID,
		ExpectedVersion:      cfg.appVersion,
		OverallTimeout:       cfg.overallTimeout,
		FallbackTimeout:      cfg.fallbackTimeout,
		PollInterval:         cfg.pollInterval,
	}
	if err := detectCfg.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		return 1
	}

	selector, err := buildSelector(cfg)
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		return 1
	}

	kinds, err := parseKinds(cfg.kinds)
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		return 1
	}

	c, err := client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: clientgoscheme.Scheme})
	if err != nil {
		setupLog.Error(err, "unable to create cluster client")
		return 1
	}

	reader := cluster.NewReader(c, cluster.MarkerKeys{
		DeploymentIDAnnotation: cfg.deploymentIDAnnotation,
		VersionLabel:           cfg.versionLabel,
	})

	workloadFilter := filter.NewWorkloadFilter(filter.Config{
		RequireLabels: splitAndTrim(cfg.requireLabels),
		ExcludeLabels: splitAndTrim(cfg.excludeLabels),
	})
	var keep func(model.WorkloadSnapshot) bool
	if !workloadFilter.Empty() {
		keep = workloadFilter.Keep
	}
	lister := reader.Scoped(kinds, cfg.namespace, selector, keep)

	clusterID := resolveClusterID(ctx, cfg)
	publishers := setupPublishers(ctx, cfg)
	checkID := uuid.New().String()

	setupLog.Info("starting gate",
		"checkID", checkID,
		"namespace", cfg.namespace,
		"selector", selector.String(),
		"kinds", kinds,
		"timeout", cfg.overallTimeout,
		"fallbackTimeout", cfg.fallbackTimeout,
	)

	rep := runGate(ctx, cfg, detectCfg, lister, reader, checkID, clusterID)

	publish.Fanout(ctx, publishers, rep)

	return rep.Status.ExitCode()
}

// runGate executes the baseline capture, sync detection, rollout tracking,
// and aggregation phases, and always returns a report.
func runGate(
	ctx context.Context,
	cfg config,
	detectCfg detect.Config,
	lister *cluster.ScopedLister,
	reader *cluster.Reader,
	checkID, clusterID string,
) model.FinalReport {
	start := time.Now()

	baseline, err := lister.Snapshots(ctx)
	if err != nil {
		setupLog.Error(err, "unable to capture baseline snapshots")
		return model.FinalReport{
			CheckID:             checkID,
			ClusterID:           clusterID,
			Status:              model.StatusFailed,
			VersionMatched:      model.MatchSkipped,
			DeploymentIDMatched: model.MatchSkipped,
			Message:             fmt.Sprintf("failed to read workloads from the cluster: %v", err),
			Elapsed:             time.Since(start),
		}
	}

	if len(baseline) == 0 {
		setupLog.Info("no workloads matched the selector; nothing to wait for",
			"namespace", cfg.namespace)
		return report.Aggregate(report.Input{
			CheckID:              checkID,
			ClusterID:            clusterID,
			ExpectedDeploymentID: cfg.deploymentID,
			ExpectedVersion:      cfg.appVersion,
			WorkloadsFound:       0,
		})
	}

	// One deadline covers both phases so budget cannot drift between them.
	deadline := start.Add(detectCfg.OverallTimeout)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	reporter := progress.NewReporter(cfg.progressInterval)
	go reporter.Start(runCtx)
	defer reporter.Stop()

	reporter.SetPhase("detecting sync")
	detector := detect.NewDetector(lister, detectCfg, baseline)
	detection := detector.Run(runCtx, deadline)

	outcomes := trackRollouts(runCtx, cfg, reader, baseline, detection, deadline, reporter)

	finalSnapshots := detection.LastObserved
	if current, err := lister.Snapshots(ctx); err == nil && len(current) > 0 {
		finalSnapshots = current
	}

	rep := report.Aggregate(report.Input{
		CheckID:              checkID,
		ClusterID:            clusterID,
		Strategy:             string(detector.Strategy()),
		ExpectedDeploymentID: cfg.deploymentID,
		ExpectedVersion:      cfg.appVersion,
		WorkloadsFound:       len(baseline),
		Detection:            detection,
		Outcomes:             outcomes,
		FinalSnapshots:       finalSnapshots,
	})
	rep.Elapsed = time.Since(start)
	return rep
}

func trackRollouts(
	ctx context.Context,
	cfg config,
	reader *cluster.Reader,
	baseline []model.WorkloadSnapshot,
	detection model.DetectionResult,
	deadline time.Time,
	reporter *progress.Reporter,
) []model.RolloutOutcome {
	if !detection.Matched {
		return nil
	}

	refs := make([]model.WorkloadRef, 0, len(baseline))
	for _, snap := range baseline {
		refs = append(refs, snap.Ref)
	}

	if detection.Method == model.MethodAlreadySynced {
		// The heuristic only fires when every rollout is already complete.
		outcomes := make([]model.RolloutOutcome, 0, len(refs))
		for _, ref := range refs {
			outcomes = append(outcomes, model.RolloutOutcome{Ref: ref, Ready: true})
		}
		return outcomes
	}

	reporter.SetPhase("tracking rollout")
	tracker := rollout.NewTracker(reader, cfg.pollInterval)
	return tracker.Track(ctx, refs, deadline)
}

func buildSelector(cfg config) (labels.Selector, error) {
	if cfg.selector != "" {
		selector, err := labels.Parse(cfg.selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", cfg.selector, err)
		}
		return selector, nil
	}
	if cfg.app != "" {
		return labels.Set{"app.kubernetes.io/name": cfg.app}.AsSelector(), nil
	}
	return nil, fmt.Errorf("either --app or --selector is required")
}

func parseKinds(kinds string) ([]model.WorkloadKind, error) {
	parts := splitAndTrim(kinds)
	if len(parts) == 0 {
		return nil, fmt.Errorf("at least one workload kind is required")
	}
	parsed := make([]model.WorkloadKind, 0, len(parts))
	for _, part := range parts {
		kind, err := model.ParseWorkloadKind(part)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, kind)
	}
	return parsed, nil
}

func resolveClusterID(ctx context.Context, cfg config) string {
	if cfg.clusterID != "" {
		return cfg.clusterID
	}

	resolveCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	identity, err := cluster.NewIdentityResolver(3 * time.Second).Resolve(resolveCtx)
	if err != nil {
		setupLog.Info("cluster identity not resolved, reports will omit it", "reason", err.Error())
		return ""
	}
	setupLog.Info("cluster identity resolved", "clusterID", identity.ClusterID)
	return identity.ClusterID
}

func setupPublishers(ctx context.Context, cfg config) []publish.ReportPublisher {
	gateVersion := buildinfo.GateVersion()
	publishers := []publish.ReportPublisher{publish.NewSummaryWriter(os.Stdout)}

	if cfg.outputsFile != "" {
		publishers = append(publishers, publish.NewOutputsWriter(cfg.outputsFile))
		setupLog.Info("outputs file enabled", "path", cfg.outputsFile)
	}

	if cfg.webhookURL != "" {
		publishers = append(publishers, publish.NewWebhookPublisher(cfg.webhookURL, gateVersion))
		setupLog.Info("webhook publisher enabled", "endpoint", cfg.webhookURL)
	}

	if cfg.pubsubTopic != "" {
		pubsubPublisher, err := pubsub.NewPublisher(ctx, cfg.pubsubTopic, gateVersion)
		if err != nil {
			setupLog.Error(err, "unable to create Pub/Sub publisher",
				"hint", "Ensure valid credentials via Workload Identity, GOOGLE_APPLICATION_CREDENTIALS, or gcloud auth")
			os.Exit(1)
		}
		publishers = append(publishers, pubsubPublisher)
		setupLog.Info("Google Pub/Sub publisher enabled", "topic", cfg.pubsubTopic)
	}

	if cfg.pushgatewayURL != "" {
		publishers = append(publishers, publish.NewPushgatewayPublisher(cfg.pushgatewayURL, cfg.namespace, cfg.app))
		setupLog.Info("Pushgateway publisher enabled", "url", cfg.pushgatewayURL)
	}

	return publishers
}

// splitAndTrim splits a comma-separated string and trims whitespace from each element
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
