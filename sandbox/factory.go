package sandbox

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// Config holds the settings the strategies need
type Config struct {
	Timeout        time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int64
	NetworkEnabled bool

	// container strategy
	Runtime   string
	Image     string
	MountPath string

	// direct strategy
	HostToolchain Toolchain
}

// NewStrategy creates the strategy selected by sandbox.mode. It is called
// once at startup.
func NewStrategy(logger *zap.Logger, cfg *config.Config) (Strategy, error) {
	strategyConfig := Config{
		Timeout:        cfg.GetTimeout(),
		KillGrace:      cfg.GetKillGrace(),
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
		NetworkEnabled: cfg.Sandbox.NetworkEnabled,
		Runtime:        cfg.Container.Runtime,
		Image:          cfg.Container.Image,
		MountPath:      cfg.Container.MountPath,
		HostToolchain:  hostToolchainFromConfig(cfg.Direct),
	}

	switch cfg.Sandbox.Mode {
	case config.ModeContainer:
		return NewContainerStrategy(logger, &strategyConfig), nil
	case config.ModeDirect:
		return NewDirectStrategy(logger, &strategyConfig), nil
	default:
		return nil, fmt.Errorf("unsupported sandbox mode: %s", cfg.Sandbox.Mode)
	}
}

// hostToolchainFromConfig fills unset fields from the running OS defaults
func hostToolchainFromConfig(direct config.DirectConfig) Toolchain {
	tc := CurrentHostToolchain()
	if len(direct.Shell) > 0 {
		tc.Shell = direct.Shell
	}
	if direct.Compiler != "" {
		tc.Compiler = direct.Compiler
	}
	if direct.Python != "" {
		tc.Python = direct.Python
	}
	if direct.ExecutableSuffix != "" {
		tc.ExecutableSuffix = direct.ExecutableSuffix
	}
	if direct.RunPrefix != "" {
		tc.RunPrefix = direct.RunPrefix
	}
	return tc
}
