package fragment

import (
	"context"

	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/memory"
	"soltix.dev/fragstore/internal/rtree"
)

// ensureLoaded implements the double-checked, memory-tracker-gated lazy
// load described in spec.md §4.4.2: a section's loaded_metadata flag is
// checked before and after acquiring its lock; on a tracker denial the
// load fails with OutOfMemory and the flag stays false.
func (fm *FragmentMetadata) ensureLoaded(id sectionID) error {
	fm.mu.Lock()
	if fm.loaded.Contains(uint32(id)) {
		fm.mu.Unlock()
		return nil
	}
	fm.mu.Unlock()

	lock, category, loader := fm.sectionLoader(id)
	lock.Lock()
	defer lock.Unlock()

	fm.mu.Lock()
	already := fm.loaded.Contains(uint32(id))
	fm.mu.Unlock()
	if already {
		return nil
	}

	size, err := loader.estimateSize(fm)
	if err != nil {
		return err
	}
	ok, available := fm.tracker.TryReserve(category, size)
	if !ok {
		if fm.log != nil {
			fm.log.Warn("fragment: memory budget denied section load",
				"category", category.String(),
				"requested", size,
				"available", available)
		}
		return errs.OutOfMemoryError(category.String(), size, available)
	}

	if err := loader.load(context.Background(), fm); err != nil {
		fm.tracker.Release(category, size)
		return err
	}

	fm.mu.Lock()
	fm.loaded.Add(uint32(id))
	fm.mu.Unlock()
	return nil
}

// noLock is a no-op mutex used for sections that, per spec.md §5,
// take the coarse lock rather than a per-column one. fm.mu already guards
// the double-check above; sections that need additional serialization
// during their own I/O take fm.mu again inside load().
type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type locker interface {
	Lock()
	Unlock()
}

type sectionLoaderFn struct {
	estimateSize func(fm *FragmentMetadata) (int64, error)
	load         func(ctx context.Context, fm *FragmentMetadata) error
}

func (fm *FragmentMetadata) sectionLoader(id sectionID) (locker, memory.Category, sectionLoaderFn) {
	switch {
	case id == secRTree:
		return noLock{}, memory.CategoryRTree, sectionLoaderFn{estimateSize: estimateRTreeSize, load: loadRTree}
	case id == secFragmentMinMaxSumNullCount:
		return noLock{}, memory.CategoryMinMaxSumNullCount, sectionLoaderFn{estimateSize: constSize(256), load: loadFragmentMinMaxSumNullCount}
	case id == secProcessedConditions:
		return noLock{}, memory.CategoryFooter, sectionLoaderFn{estimateSize: constSize(64), load: loadProcessedConditions}
	default:
		rel := int(id) - int(secTileOffsetsBase)
		idx := rel / 6
		kind := rel % 6
		switch kind {
		case 0:
			return &fm.colMu[idx], memory.CategoryTileOffsets, sectionLoaderFn{estimateSize: sizeOfU64Section(idx), load: loadTileOffsetsAt(idx)}
		case 1:
			return &fm.colMu[idx], memory.CategoryTileOffsets, sectionLoaderFn{estimateSize: constSize(1024), load: loadTileVarOffsetsAt(idx)}
		case 2:
			return noLock{}, memory.CategoryTileOffsets, sectionLoaderFn{estimateSize: constSize(1024), load: loadTileVarSizesAt(idx)}
		case 3:
			return noLock{}, memory.CategoryTileOffsets, sectionLoaderFn{estimateSize: constSize(1024), load: loadTileValidityOffsetsAt(idx)}
		case 4:
			return noLock{}, memory.CategoryMinMaxSumNullCount, sectionLoaderFn{estimateSize: constSize(1024), load: loadTileMinMaxAt(idx)}
		default:
			return noLock{}, memory.CategoryMinMaxSumNullCount, sectionLoaderFn{estimateSize: constSize(1024), load: loadTileSumNullCountAt(idx)}
		}
	}
}

func constSize(n int64) func(fm *FragmentMetadata) (int64, error) {
	return func(fm *FragmentMetadata) (int64, error) { return n, nil }
}

// sizeOfU64Section estimates a tile_offsets-style section's in-memory size
// from the persisted file size already known from the footer, avoiding an
// extra read just to size the memory-tracker reservation.
func sizeOfU64Section(idx int) func(fm *FragmentMetadata) (int64, error) {
	return func(fm *FragmentMetadata) (int64, error) {
		if idx < len(fm.fileSizes) {
			return int64(fm.fileSizes[idx]), nil
		}
		return 1024, nil
	}
}

func (fm *FragmentMetadata) readGenericTileAt(ctx context.Context, offset uint64) ([]byte, error) {
	f, err := fm.fs.OpenRead(ctx, fm.metadataURI)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: open metadata file")
	}
	defer f.Close()

	size, err := f.Size(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: stat metadata file")
	}
	head := make([]byte, 24)
	if _, err := f.ReadAt(ctx, head, int64(offset)); err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: read generic tile header")
	}
	persisted := le64(head)
	total := int64(24) + int64(persisted)
	if int64(offset)+total > size {
		return nil, errs.New(errs.Corrupt, "fragment: generic tile extends past end of file")
	}
	buf := make([]byte, total)
	if _, err := f.ReadAt(ctx, buf, int64(offset)); err != nil {
		return nil, errs.Wrap(errs.Io, err, "fragment: read generic tile")
	}
	gt, _, err := UnmarshalGenericTile(buf)
	if err != nil {
		return nil, err
	}
	return gt.Decode(fm.filters)
}

func estimateRTreeSize(fm *FragmentMetadata) (int64, error) { return int64(fm.sparseTileNum) * 32, nil }

func loadRTree(ctx context.Context, fm *FragmentMetadata) error {
	if fm.dense {
		return nil
	}
	payload, err := fm.readGenericTileAt(ctx, fm.gt.rtree)
	if err != nil {
		return err
	}
	fanout := effectiveRTreeFanOut(fm.rtreeFanOut)
	t, err := rtree.Deserialize(fm.schema.Domain(), fanout, payload)
	if err != nil {
		return err
	}
	fm.mu.Lock()
	fm.rt = t
	if len(t.Leaves()) > 0 {
		fm.mbrs = t.Leaves()
	}
	fm.mu.Unlock()
	return nil
}

func loadTileOffsetsAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		payload, err := fm.readGenericTileAt(ctx, fm.gt.tileOffsets[idx])
		if err != nil {
			return err
		}
		v, err := decodeU64Vector(payload)
		if err != nil {
			return err
		}
		fm.tileOffsets[idx] = v
		return nil
	}
}

func loadTileVarOffsetsAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		payload, err := fm.readGenericTileAt(ctx, fm.gt.tileVarOffsets[idx])
		if err != nil {
			return err
		}
		v, err := decodeU64Vector(payload)
		if err != nil {
			return err
		}
		fm.tileVarOffsets[idx] = v
		return nil
	}
}

func loadTileVarSizesAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		payload, err := fm.readGenericTileAt(ctx, fm.gt.tileVarSizes[idx])
		if err != nil {
			return err
		}
		v, err := decodeU64Vector(payload)
		if err != nil {
			return err
		}
		fm.tileVarSizes[idx] = v
		return nil
	}
}

func loadTileValidityOffsetsAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		payload, err := fm.readGenericTileAt(ctx, fm.gt.tileValidityOffsets[idx])
		if err != nil {
			return err
		}
		v, err := decodeU64Vector(payload)
		if err != nil {
			return err
		}
		fm.tileValidityOffsets[idx] = v
		return nil
	}
}

func loadTileMinMaxAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		if fm.version < 11 {
			return nil
		}
		minPayload, err := fm.readGenericTileAt(ctx, fm.gt.tileMin[idx])
		if err != nil {
			return err
		}
		maxPayload, err := fm.readGenericTileAt(ctx, fm.gt.tileMax[idx])
		if err != nil {
			return err
		}
		minFixed, minVar, minOffsets, err := decodeTileMinMax(minPayload)
		if err != nil {
			return err
		}
		maxFixed, maxVar, maxOffsets, err := decodeTileMinMax(maxPayload)
		if err != nil {
			return err
		}
		fm.tileMinFixed[idx] = minFixed
		fm.tileMinVar[idx] = minVar
		fm.tileMinVarOffsets[idx] = minOffsets
		fm.tileMaxFixed[idx] = maxFixed
		fm.tileMaxVar[idx] = maxVar
		fm.tileMaxVarOffsets[idx] = maxOffsets
		return nil
	}
}

func loadTileSumNullCountAt(idx int) func(ctx context.Context, fm *FragmentMetadata) error {
	return func(ctx context.Context, fm *FragmentMetadata) error {
		if fm.version < 11 {
			return nil
		}
		sumPayload, err := fm.readGenericTileAt(ctx, fm.gt.tileSum[idx])
		if err != nil {
			return err
		}
		ncPayload, err := fm.readGenericTileAt(ctx, fm.gt.tileNullCount[idx])
		if err != nil {
			return err
		}
		sums, err := decodeU64Vector(sumPayload)
		if err != nil {
			return err
		}
		ncs, err := decodeU64Vector(ncPayload)
		if err != nil {
			return err
		}
		fm.tileSums[idx] = sums
		fm.tileNullCounts[idx] = ncs
		return nil
	}
}

func loadFragmentMinMaxSumNullCount(ctx context.Context, fm *FragmentMetadata) error {
	if fm.version < 12 {
		return nil
	}
	payload, err := fm.readGenericTileAt(ctx, fm.gt.fragmentMinMaxSumNullCnt)
	if err != nil {
		return err
	}
	return fm.decodeFragmentMinMaxSumNullCount(payload)
}

func loadProcessedConditions(ctx context.Context, fm *FragmentMetadata) error {
	if fm.version < 16 {
		return nil
	}
	payload, err := fm.readGenericTileAt(ctx, fm.gt.processedConditions)
	if err != nil {
		return err
	}
	return fm.decodeProcessedConditions(payload)
}
