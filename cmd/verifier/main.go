// Package main provides the CLI entrypoint for the MaaS gateway verifier.
//
// The verifier accepts configuration via CLI flags, environment variables,
// or defaults:
//
//   - Gateway host: --gateway-host flag, GATEWAY_HOST env var (required)
//   - Namespace: --namespace flag, MAAS_NAMESPACE env var, or "opendatahub" default
//   - Bearer token: --token flag, TOKEN env var, or minted on demand
//   - Kubeconfig: --kubeconfig flag (for out-of-cluster runs)
//
// Verification runs until finished or until SIGTERM/SIGINT interrupts it,
// at which point restoration of any touched resources still completes.
package main

import (
	"os"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "verifier",
	Short: "Verification harness for a MaaS API gateway",
	Long: `Verification harness for a Models-as-a-Service API gateway.

The verifier mutates gateway policy resources, polls the gateway until its
observable behavior converges, and reports one summary verdict per scenario.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
