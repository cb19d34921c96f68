package fragment

// encodeFooter serializes the footer in the version-specific field order of
// spec.md §6 ("Footer byte layout"), using fm's current in-memory state
// (the gt field offsets must already be populated by the caller).
func (fm *FragmentMetadata) encodeFooter() []byte {
	w := &byteWriter{}
	n := fm.idx.numCols()

	w.u32(fm.version)
	if fm.version >= 10 {
		name := []byte(fm.schema.Name())
		w.u64(uint64(len(name)))
		w.bytes(name)
	}

	if fm.dense {
		w.u8(1)
	} else {
		w.u8(0)
	}
	encodeNonEmptyDomain(w, domainDimsOf(fm.schema), fm.nonEmptyDomain)

	w.u64(fm.sparseTileNum)
	w.u64(fm.lastTileCellNum)
	if fm.version >= 14 {
		w.u8(boolToU8(fm.hasTimestamps))
	}
	if fm.version >= 15 {
		w.u8(boolToU8(fm.hasDeleteMeta))
	}

	w.u64s(padTo(fm.fileSizes, n))
	w.u64s(padTo(fm.fileVarSizes, n))
	if fm.version >= 7 {
		w.u64s(padTo(fm.fileValiditySizes, n))
	}

	w.u64(fm.gt.rtree)
	w.u64s(padTo(fm.gt.tileOffsets, n))
	w.u64s(padTo(fm.gt.tileVarOffsets, n))
	w.u64s(padTo(fm.gt.tileVarSizes, n))
	if fm.version >= 7 {
		w.u64s(padTo(fm.gt.tileValidityOffsets, n))
	}
	if fm.version >= 11 {
		w.u64s(padTo(fm.gt.tileMin, n))
		w.u64s(padTo(fm.gt.tileMax, n))
		w.u64s(padTo(fm.gt.tileSum, n))
		w.u64s(padTo(fm.gt.tileNullCount, n))
	}
	if fm.version >= 12 {
		w.u64(fm.gt.fragmentMinMaxSumNullCnt)
	}
	if fm.version >= 16 {
		w.u64(fm.gt.processedConditions)
	}
	return w.buf
}

func padTo(s []uint64, n int) []uint64 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]uint64, n)
	copy(out, s)
	return out
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
