package inference

import (
	"fmt"
	"time"

	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
)

// Load builds the model set described by cfg.Models. Any failure is
// returned so that startup can abort.
func Load(cfg *config.Config) (*domsvc.ModelSet, error) {
	timeout := cfg.Models.Timeout
	tab, err := loadTabular(cfg.Models.Tabular, timeout, treeFile)
	if err != nil {
		return nil, fmt.Errorf("load tabular model: %w", err)
	}
	seq, err := loadSequence(cfg.Models.Sequence, timeout)
	if err != nil {
		return nil, fmt.Errorf("load sequence model: %w", err)
	}
	meta, err := loadTabular(cfg.Models.Meta, timeout, linearFile)
	if err != nil {
		return nil, fmt.Errorf("load meta model: %w", err)
	}
	return domsvc.NewModelSet(tab, seq, meta)
}

func treeFile(path string) (domsvc.TabularRegressor, error)   { return LoadTreeEnsemble(path) }
func linearFile(path string) (domsvc.TabularRegressor, error) { return LoadLinearRegressor(path) }

func loadTabular(spec config.ModelSpec, timeout time.Duration, native func(string) (domsvc.TabularRegressor, error)) (domsvc.TabularRegressor, error) {
	switch spec.Kind {
	case "remote":
		return NewRemoteRegressor(spec.Name, spec.URL, timeout), nil
	case "native", "":
		return native(spec.Path)
	default:
		return nil, fmt.Errorf("unknown model kind %q", spec.Kind)
	}
}

func loadSequence(spec config.ModelSpec, timeout time.Duration) (domsvc.SequenceRegressor, error) {
	switch spec.Kind {
	case "remote":
		return NewRemoteRegressor(spec.Name, spec.URL, timeout), nil
	case "native", "":
		return LoadGRURegressor(spec.Path)
	default:
		return nil, fmt.Errorf("unknown model kind %q", spec.Kind)
	}
}
