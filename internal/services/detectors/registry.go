package detectors

import (
	"fmt"
	"strings"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	"AutoEye/internal/domain/service"
)

var constructors = map[models.Kind]func(Config) service.Detector{
	models.KindFVG:     func(c Config) service.Detector { return NewGapDetector(c) },
	models.KindFractal: func(Config) service.Detector { return NewFractalDetector() },
	models.KindSNR:     func(c Config) service.Detector { return NewBreakDetector(c) },
	models.KindRB:      func(c Config) service.Detector { return NewBlockDetector(c) },
}

// Build returns detectors for kinds in the configured order. Unknown or missing kinds
// are configuration errors.
func Build(kinds []string, cfg Config) ([]service.Detector, error) {
	out := make([]service.Detector, 0, len(kinds))
	seen := make(map[models.Kind]struct{}, len(kinds))
	for _, raw := range kinds {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		kind, ok := models.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown element kind %q", domain.ErrConfiguration, raw)
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, constructors[kind](cfg))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no element kinds enabled", domain.ErrConfiguration)
	}
	return out, nil
}
