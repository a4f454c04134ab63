// internal/runner/input.go
package runner

import (
	"fmt"
	"strings"

	"github.com/JYU-DI/timsync/internal/config"
)

// TargetEnv names the sync target when no argument is given.
const TargetEnv = "TIMSYNC_TARGET"

// ResolveTarget determines the sync target name.
// Priority: argument > env value > "default" > the only configured target.
func ResolveTarget(arg, env string, cfg *config.Config) (string, error) {
	if name := strings.TrimSpace(arg); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(env); name != "" {
		return name, nil
	}
	if _, ok := cfg.Targets[config.DefaultTarget]; ok {
		return config.DefaultTarget, nil
	}
	if len(cfg.Targets) == 1 {
		for name := range cfg.Targets {
			return name, nil
		}
	}
	if len(cfg.Targets) == 0 {
		return "", fmt.Errorf("%w: no sync targets configured. Use `timsync target add` to add one", config.ErrUnknownTarget)
	}
	return "", fmt.Errorf("%w: several targets are configured, name one of them", config.ErrUnknownTarget)
}
