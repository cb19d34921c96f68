package fragment

import (
	"soltix.dev/fragstore/internal/config"
	"soltix.dev/fragstore/internal/filter"
	"soltix.dev/fragstore/internal/logging"
	"soltix.dev/fragstore/internal/memory"
	"soltix.dev/fragstore/internal/vfs"
)

// NewResources builds the Resources bundle a caller would otherwise have to
// assemble by hand, wiring cfg's R-tree fan-out and per-category memory
// budgets (spec.md §5's memory tracker, SPEC_FULL.md §1's configuration
// surface) into the collaborators FragmentMetadata depends on.
func NewResources(cfg config.EngineConfig, fs vfs.FS, filters *filter.Registry, log *logging.Logger) Resources {
	budgets := map[memory.Category]int64{
		memory.CategoryRTree:              cfg.Memory.RTreeBudget,
		memory.CategoryTileOffsets:        cfg.Memory.TileOffsetsBudget,
		memory.CategoryMinMaxSumNullCount: cfg.Memory.MinMaxSumNullCountBudget,
		memory.CategoryFooter:             cfg.Memory.FooterBudget,
	}
	return Resources{
		FS:          fs,
		Tracker:     memory.NewBudgetTracker(budgets),
		Filters:     filters,
		Log:         log,
		RTreeFanOut: cfg.RTree.FanOut,
	}
}
