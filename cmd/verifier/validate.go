package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"maas-gateway-verifier/pkg/core/config"
	"maas-gateway-verifier/pkg/gateway"
	"maas-gateway-verifier/pkg/k8s/resource"
)

// validateCmd checks a run's inputs without touching the gateway: the
// environment configuration, the embedded API contract, and any scenario
// manifest fixtures passed as arguments.
var validateCmd = &cobra.Command{
	Use:   "validate [manifest files...]",
	Short: "Validate configuration and scenario manifests without running",
	Long: `Validate configuration and scenario manifests without running.

Checks the environment-supplied configuration, loads the embedded API
contract, and parses every manifest file given as an argument.

Example usage:
  GATEWAY_HOST=maas.example.com verifier validate scenarios/*.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Printf("configuration ok (gateway %s, namespace %s)\n", cfg.GatewayURL(), cfg.Namespace)

	if _, err := gateway.NewResponseValidator(); err != nil {
		return err
	}
	fmt.Println("embedded API contract ok")

	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		manifest, err := resource.ManifestFromYAML(raw)
		if err != nil {
			return fmt.Errorf("invalid manifest %s: %w", path, err)
		}
		fmt.Printf("manifest %s ok (%s %s)\n", path, manifest.GetKind(), manifest.GetName())
	}

	return nil
}
