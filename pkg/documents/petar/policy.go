package petar

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default duration caps. The two subsystems that issued permits historically
// disagreed on the maximum validity; both values are kept configurable and
// the discrepancy is surfaced at load time instead of silently resolved.
const (
	DefaultDocumentCap = 24 * time.Hour
	DefaultPermitCap   = 12 * time.Hour
)

// Policy holds the validity caps applied to permit intervals.
type Policy struct {
	DocumentCap time.Duration
	PermitCap   time.Duration
}

// DefaultPolicy returns the built-in caps.
func DefaultPolicy() Policy {
	return Policy{DocumentCap: DefaultDocumentCap, PermitCap: DefaultPermitCap}
}

type policyFile struct {
	DurationCaps struct {
		PetarDocument string `yaml:"petar_document"`
		PetarPermit   string `yaml:"petar_permit"`
	} `yaml:"duration_caps"`
}

// LoadPolicy reads the caps from a YAML file. Missing keys keep their
// defaults. When the two caps differ a warning is logged so operators know
// which one the permit service enforces.
func LoadPolicy(path string, logger *slog.Logger) (Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := DefaultPolicy()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Policy{}, fmt.Errorf("reading duration policy %s: %w", path, err)
		}
		var pf policyFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return Policy{}, fmt.Errorf("parsing duration policy %s: %w", path, err)
		}
		if pf.DurationCaps.PetarDocument != "" {
			d, err := time.ParseDuration(pf.DurationCaps.PetarDocument)
			if err != nil {
				return Policy{}, fmt.Errorf("invalid petar_document cap %q: %w", pf.DurationCaps.PetarDocument, err)
			}
			p.DocumentCap = d
		}
		if pf.DurationCaps.PetarPermit != "" {
			d, err := time.ParseDuration(pf.DurationCaps.PetarPermit)
			if err != nil {
				return Policy{}, fmt.Errorf("invalid petar_permit cap %q: %w", pf.DurationCaps.PetarPermit, err)
			}
			p.PermitCap = d
		}
	}

	if p.DocumentCap != p.PermitCap {
		logger.Warn("petar duration caps differ, the permit service enforces petar_permit",
			"petar_document", p.DocumentCap.String(),
			"petar_permit", p.PermitCap.String())
	}
	return p, nil
}
