package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"maas-gateway-verifier/pkg/core/config"
	"maas-gateway-verifier/pkg/core/logging"
	"maas-gateway-verifier/pkg/credentials"
	"maas-gateway-verifier/pkg/gateway"
	"maas-gateway-verifier/pkg/k8s/client"
	"maas-gateway-verifier/pkg/metrics"
	"maas-gateway-verifier/pkg/verify/poll"
	"maas-gateway-verifier/pkg/verify/summary"
)

var (
	runGatewayHost string
	runNamespace   string
	runToken       string
	runKubeconfig  string
	runMetricsAddr string
	runInsecure    bool
)

// runCmd executes the smoke verification: catalog reachability, completion
// availability and authentication enforcement, concurrently, with one
// summary verdict per check. The full scenario matrix lives in the e2e
// suite; this command is the fast standalone check for CI gates and
// post-install validation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the smoke verification against a gateway",
	Long: `Run the smoke verification against a gateway.

Configuration is loaded from:
1. Command-line flags (highest priority)
2. Environment variables
3. Default values (lowest priority)

Example usage:
  # Verify a gateway with a pre-provisioned token
  verifier run --gateway-host maas.apps.cluster.example.com --token "$TOKEN"

  # Verify from outside the cluster, minting a ServiceAccount token
  verifier run --gateway-host maas.apps.cluster.example.com --kubeconfig ~/.kube/config`,
	RunE: runVerification,
}

func init() {
	runCmd.Flags().StringVar(&runGatewayHost, "gateway-host", "",
		"Hostname of the gateway under test (env: GATEWAY_HOST)")
	runCmd.Flags().StringVar(&runNamespace, "namespace", "",
		"Namespace holding the MaaS policy resources (env: MAAS_NAMESPACE)")
	runCmd.Flags().StringVar(&runToken, "token", "",
		"Pre-provisioned bearer token; skips minting (env: TOKEN)")
	runCmd.Flags().StringVar(&runKubeconfig, "kubeconfig", "",
		"Path to kubeconfig file (for out-of-cluster runs)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "",
		"Listen address for the harness's own metrics endpoint (env: METRICS_ADDR)")
	runCmd.Flags().BoolVar(&runInsecure, "insecure-http", false,
		"Use plain HTTP towards the gateway (env: INSECURE_HTTP)")
}

func runVerification(cmd *cobra.Command, args []string) error {
	// Configuration priority: CLI flags > Environment variables > Defaults
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	if runGatewayHost != "" {
		cfg.GatewayHost = runGatewayHost
	}
	if runNamespace != "" {
		cfg.Namespace = runNamespace
	}
	if runToken != "" {
		cfg.Token = runToken
	}
	if runMetricsAddr != "" {
		cfg.MetricsAddr = runMetricsAddr
	}
	if runInsecure {
		cfg.InsecureHTTP = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// VERBOSE: 0 = WARNING, 1 = INFO (default), 2 = DEBUG
	logLevel := "info"
	switch os.Getenv("VERBOSE") {
	case "0":
		logLevel = "warn"
	case "2":
		logLevel = "debug"
	}
	logger := logging.NewLogger(logLevel)
	slog.SetDefault(logger)

	gomaxprocs := runtime.GOMAXPROCS(0)
	gomemlimit := "unlimited"
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		gomemlimit = fmt.Sprintf("%d bytes (%.2f MiB)", limit, float64(limit)/(1024*1024))
	}

	logger.Info("MaaS gateway verifier starting",
		"gateway", cfg.GatewayURL(),
		"namespace", cfg.Namespace,
		"log_level", logLevel,
		"gomaxprocs", gomaxprocs,
		"gomemlimit", gomemlimit)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	harness := metrics.NewHarness()
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, harness.Registry())
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	gw := gateway.New(gateway.Options{
		GatewayURL:         cfg.GatewayURL(),
		APIBaseURL:         cfg.MaasAPIBaseURL,
		Timeout:            cfg.RequestTimeout,
		InsecureSkipVerify: cfg.SkipTLSVerify,
		Logger:             logger,
	})

	token, err := acquireToken(ctx, cfg, harness, logger)
	if err != nil {
		return fmt.Errorf("failed to acquire a bearer token: %w", err)
	}

	validator, err := gateway.NewResponseValidator()
	if err != nil {
		return err
	}

	results := summary.New()
	pollOpts := poll.Options{
		Budget:   cfg.PollBudget(),
		Interval: cfg.PollInterval,
		Logger:   logger,
		Recorder: harness,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		checkModelCatalog(gctx, cfg, gw, validator, token, results, harness)
		return nil
	})
	g.Go(func() error {
		checkChatCompletion(gctx, cfg, gw, token, results, pollOpts)
		return nil
	})
	g.Go(func() error {
		checkAuthRequired(gctx, cfg, gw, results, pollOpts)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Verification aborted", "error", err)
	}

	for _, entry := range results.Entries() {
		harness.ScenarioOutcome(string(entry.Status))
	}
	fmt.Print(results.Render())

	if results.Failed() {
		return errors.New("verification failed")
	}
	logger.Info("Verification passed")
	return nil
}

// acquireToken resolves the run identity: the configured token if present,
// otherwise a ServiceAccount token minted through the cluster.
func acquireToken(ctx context.Context, cfg *config.Config, harness *metrics.Harness, logger *slog.Logger) (string, error) {
	var minter credentials.Minter
	if cfg.Token == "" {
		k8sClient, err := client.New(client.Config{Kubeconfig: runKubeconfig})
		if err != nil {
			return "", fmt.Errorf("no token configured and no cluster access to mint one: %w", err)
		}
		minter = credentials.NewTokenRequestMinter(k8sClient.Clientset(), cfg.TokenSANamespace, cfg.TokenSAName)
	}

	acquirer := credentials.NewAcquirer(credentials.Options{
		PreProvisioned: cfg.Token,
		Minter:         minter,
		RetryWait:      cfg.RetryWait,
		Logger:         logger,
	})
	token, err := acquirer.Acquire(ctx)
	if err != nil {
		harness.MintAttempt("failure")
		return "", err
	}
	if cfg.Token == "" {
		harness.MintAttempt("success")
	}
	return token, nil
}

func checkModelCatalog(ctx context.Context, cfg *config.Config, gw *gateway.Client, validator *gateway.ResponseValidator, token string, results *summary.Summary, harness *metrics.Harness) {
	const name = "smoke/model-catalog"

	models, resp, err := gw.ListModels(ctx, token)
	if resp != nil {
		harness.RequestSent(resp.Status)
	}
	if err != nil {
		results.Record(name, false, err.Error(), "200 with model catalog")
		return
	}
	if err := validator.Validate(ctx, http.MethodGet, gw.APIBaseURL()+"/v1/models", resp); err != nil {
		results.Record(name, false, err.Error(), "catalog matching API contract")
		return
	}
	results.Record(name, true, fmt.Sprintf("200, %d models", len(models)), "200 with model catalog")

	if gateway.FindModel(models, cfg.ModelRef) == nil {
		results.Warn("smoke/model-catalog-entry",
			fmt.Sprintf("model %q not present in catalog", cfg.ModelRef))
	}
}

func checkChatCompletion(ctx context.Context, cfg *config.Config, gw *gateway.Client, token string, results *summary.Summary, pollOpts poll.Options) {
	const name = "smoke/chat-completion"

	payload, err := gateway.ChatPayload(cfg.ModelName)
	if err != nil {
		results.Record(name, false, err.Error(), "200")
		return
	}
	probe, latest := gw.ObservedStatusProbe(gateway.Request{
		Path:         cfg.ModelPath + "/v1/chat/completions",
		Token:        token,
		Subscription: cfg.SimulatorSubscription,
		Payload:      payload,
	})

	result, err := poll.Until(ctx, probe, poll.Value(200), pollOpts)
	if err != nil {
		results.Record(name, false, err.Error(), "200")
		return
	}
	results.Record(name, true, fmt.Sprintf("200 after %d attempts", result.Attempts), "200")

	if resp := latest(); resp != nil {
		if usage, ok := resp.TotalTokens(); ok {
			results.Info("smoke/token-usage", fmt.Sprintf("%d tokens metered", usage))
		} else {
			results.Warn("smoke/token-usage", "no token usage reported")
		}
	}
}

func checkAuthRequired(ctx context.Context, cfg *config.Config, gw *gateway.Client, results *summary.Summary, pollOpts poll.Options) {
	const name = "smoke/auth-required"

	payload, err := gateway.ChatPayload(cfg.ModelName)
	if err != nil {
		results.Record(name, false, err.Error(), "401 or 403")
		return
	}
	probe := gw.StatusProbe(gateway.Request{
		Path:    cfg.ModelPath + "/v1/chat/completions",
		Payload: payload,
	})

	result, err := poll.Until(ctx, probe, poll.OneOf(401, 403), pollOpts)
	if err != nil {
		results.Record(name, false, err.Error(), "401 or 403")
		return
	}
	results.Record(name, true, fmt.Sprintf("%d", result.LastObservation), "401 or 403")
}
