// Package collectors gathers host metadata for a single process, file,
// or port query and renders it as an ordered attribute list.
package collectors

import (
	"context"
	"fmt"

	"github.com/hostprobe/hostprobe/internal/config"
	"github.com/hostprobe/hostprobe/internal/executor"
	"github.com/hostprobe/hostprobe/internal/metadata"
)

// Collector answers exactly one query type. Collect never returns a nil
// result: lookup failures are reported through the result's error field.
type Collector interface {
	Collect(ctx context.Context, identifier string) *metadata.Result
	QueryType() metadata.QueryType
	Name() string
}

// New builds the collector for qt. The port collector shells out through
// runner; the others only touch the local kernel interfaces.
func New(qt metadata.QueryType, cfg *config.Config, runner executor.Runner) (Collector, error) {
	switch qt {
	case metadata.QueryProcess:
		return NewProcessCollector(cfg), nil
	case metadata.QueryFile:
		return NewFileCollector(cfg), nil
	case metadata.QueryPort:
		return NewPortCollector(cfg, runner), nil
	default:
		return nil, fmt.Errorf("unknown query type %q", qt)
	}
}
