// Package config provides application configuration management.
//
// The config package loads the service configuration with viper from an
// optional config.yaml, applies defaults for every key and lets environment
// variables override them. Besides the RUNBOX_ prefixed variables, the
// EXECUTION_MODE and PORT variables used by earlier deployments are honoured.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Execution mode: %s\n", cfg.Sandbox.Mode)
package config
