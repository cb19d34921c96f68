package fragment

import (
	"context"

	"soltix.dev/fragstore/internal/errs"
	"soltix.dev/fragstore/internal/filter"
)

// defaultPipelineVersion is the filter pipeline used for ordinary metadata
// sections. filter.NoopVersion is used for the footer itself on
// versions that locate it via the no-trailer formula (see
// legacyFooterPayloadSize): those footers must be stored uncompressed so
// their persisted size equals the formula's plain-size prediction.
const defaultPipelineVersion = 1 // zstd

// Store writes generic sub-tiles in the version-specific order of spec.md
// §4.4.1 step 5, then the footer, then (if required) the trailing
// footer_size. On any error the partial metadata file is removed.
func (fm *FragmentMetadata) Store(ctx context.Context) error {
	if fm.version < MinStoreVersion {
		return errs.Newf(errs.Unsupported, "fragment: cannot store fragment at version %d (minimum %d)", fm.version, MinStoreVersion)
	}

	if err := fm.storeInner(ctx); err != nil {
		_ = fm.fs.Remove(ctx, fm.metadataURI)
		if _, ok := errs.KindOf(err); ok {
			return err
		}
		return errs.Wrap(errs.Io, err, "fragment: store failed")
	}
	return nil
}

func (fm *FragmentMetadata) storeInner(ctx context.Context) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	n := fm.idx.numCols()
	f, err := fm.fs.OpenWrite(ctx, fm.metadataURI)
	if err != nil {
		return errs.Wrap(errs.Io, err, "fragment: open metadata file for write")
	}
	defer f.Close()

	var off int64
	writeSection := func(payload []byte) (uint64, error) {
		start := uint64(off)
		gt, err := EncodeGenericTile(fm.filters, defaultPipelineVersion, fm.version, payload)
		if err != nil {
			return 0, err
		}
		marshaled := gt.Marshal()
		if _, err := f.WriteAt(ctx, marshaled, off); err != nil {
			return 0, errs.Wrap(errs.Io, err, "fragment: write section")
		}
		off += int64(len(marshaled))
		return start, nil
	}

	fm.gt.rtree, err = writeSection(fm.serializeRTree())
	if err != nil {
		return err
	}

	fm.gt.tileOffsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		if fm.gt.tileOffsets[i], err = writeSection(encodeU64Vector(fm.tileOffsets[i])); err != nil {
			return err
		}
	}
	fm.gt.tileVarOffsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		if fm.gt.tileVarOffsets[i], err = writeSection(encodeU64Vector(fm.tileVarOffsets[i])); err != nil {
			return err
		}
	}
	fm.gt.tileVarSizes = make([]uint64, n)
	for i := 0; i < n; i++ {
		if fm.gt.tileVarSizes[i], err = writeSection(encodeU64Vector(fm.tileVarSizes[i])); err != nil {
			return err
		}
	}
	fm.gt.tileValidityOffsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		if fm.gt.tileValidityOffsets[i], err = writeSection(encodeU64Vector(fm.tileValidityOffsets[i])); err != nil {
			return err
		}
	}

	if fm.version >= 11 {
		fm.gt.tileMin = make([]uint64, n)
		for i := 0; i < n; i++ {
			if fm.gt.tileMin[i], err = writeSection(encodeTileMinMax(fm.tileMinFixed[i], fm.tileMinVar[i], fm.tileMinVarOffsets[i])); err != nil {
				return err
			}
		}
		fm.gt.tileMax = make([]uint64, n)
		for i := 0; i < n; i++ {
			if fm.gt.tileMax[i], err = writeSection(encodeTileMinMax(fm.tileMaxFixed[i], fm.tileMaxVar[i], fm.tileMaxVarOffsets[i])); err != nil {
				return err
			}
		}
		fm.gt.tileSum = make([]uint64, n)
		for i := 0; i < n; i++ {
			if fm.gt.tileSum[i], err = writeSection(encodeU64Vector(fm.tileSums[i])); err != nil {
				return err
			}
		}
		fm.gt.tileNullCount = make([]uint64, n)
		for i := 0; i < n; i++ {
			if fm.gt.tileNullCount[i], err = writeSection(encodeU64Vector(fm.tileNullCounts[i])); err != nil {
				return err
			}
		}
	}

	if fm.version >= 12 {
		if fm.gt.fragmentMinMaxSumNullCnt, err = writeSection(fm.encodeFragmentMinMaxSumNullCount()); err != nil {
			return err
		}
	}
	if fm.version >= 16 {
		if fm.gt.processedConditions, err = writeSection(fm.encodeProcessedConditions()); err != nil {
			return err
		}
	}

	footerPayload := fm.encodeFooter()
	legacy := fm.usesLegacyFooterLocation()
	pipelineVersion := uint32(defaultPipelineVersion)
	if legacy {
		pipelineVersion = filter.NoopVersion
	}
	footerGT, err := EncodeGenericTile(fm.filters, pipelineVersion, fm.version, footerPayload)
	if err != nil {
		return err
	}
	footerMarshaled := footerGT.Marshal()
	if _, err := f.WriteAt(ctx, footerMarshaled, off); err != nil {
		return errs.Wrap(errs.Io, err, "fragment: write footer")
	}
	off += int64(len(footerMarshaled))

	if !legacy {
		w := &byteWriter{}
		w.u64(uint64(len(footerMarshaled)))
		if _, err := f.WriteAt(ctx, w.buf, off); err != nil {
			return errs.Wrap(errs.Io, err, "fragment: write footer_size trailer")
		}
	}

	return f.Sync(ctx)
}

// usesLegacyFooterLocation reports whether this fragment's footer must be
// locatable without a trailing footer_size, per spec.md §6: "If any
// dimension is var-sized or version >= 10: trailing footer_size". When
// false (version < 10, all dimensions fixed), the footer is written
// uncompressed so legacyFooterPayloadSize can predict its exact size.
func (fm *FragmentMetadata) usesLegacyFooterLocation() bool {
	if fm.version >= 10 {
		return false
	}
	if fm.nonEmptyDomain.Empty() {
		// The no-trailer formula assumes a present (non-null) non-empty
		// domain; an empty fragment falls back to the trailer so its
		// footer is still locatable.
		return false
	}
	for _, d := range fm.schema.Dimensions() {
		if d.IsVarLength() {
			return false
		}
	}
	return true
}

func (fm *FragmentMetadata) serializeRTree() []byte {
	if fm.rt == nil {
		return nil
	}
	return fm.rt.Serialize()
}
