package fragment

import (
	"github.com/RoaringBitmap/roaring"

	"soltix.dev/fragstore/internal/errs"
)

// decodeFooterPayload parses a footer's plain payload per the ordering
// encodeFooter writes, resolving the fragment's schema and sizing every
// per-column vector along the way.
func (fm *FragmentMetadata) decodeFooterPayload(payload []byte, opts LoadOptions) error {
	r := &byteReader{buf: payload}

	version, err := r.u32()
	if err != nil {
		return err
	}
	fm.version = version

	var schemaName string
	if version >= 10 {
		size, err := r.u64()
		if err != nil {
			return err
		}
		nameBytes, err := r.bytesN(int(size))
		if err != nil {
			return err
		}
		schemaName = string(nameBytes)
		s, ok := opts.Schemas[schemaName]
		if !ok {
			return errs.Newf(errs.Invalid, "fragment: unknown schema %q referenced by footer", schemaName)
		}
		fm.schema = s
	} else {
		if opts.DefaultSchema == nil {
			return errs.New(errs.Invalid, "fragment: pre-v10 footer requires a default schema")
		}
		fm.schema = opts.DefaultSchema
	}

	denseByte, err := r.u8()
	if err != nil {
		return err
	}
	fm.dense = denseByte != 0

	dims := domainDimsOf(fm.schema)
	if version >= 5 {
		fm.nonEmptyDomain, err = decodeNonEmptyDomain(r, dims)
	} else {
		fm.nonEmptyDomain, err = decodeNonEmptyDomainLegacy(r, dims, version)
	}
	if err != nil {
		return err
	}

	fm.sparseTileNum, err = r.u64()
	if err != nil {
		return err
	}
	fm.lastTileCellNum, err = r.u64()
	if err != nil {
		return err
	}
	if version >= 14 {
		b, err := r.u8()
		if err != nil {
			return err
		}
		fm.hasTimestamps = b != 0
	}
	if version >= 15 {
		b, err := r.u8()
		if err != nil {
			return err
		}
		fm.hasDeleteMeta = b != 0
	}

	fm.idx = buildIdxMap(fm.schema, fm.hasTimestamps, fm.hasDeleteMeta)
	n := fm.idx.numCols()

	fm.fileSizes, err = r.u64s(n)
	if err != nil {
		return err
	}
	fm.fileVarSizes, err = r.u64s(n)
	if err != nil {
		return err
	}
	if version >= 7 {
		fm.fileValiditySizes, err = r.u64s(n)
		if err != nil {
			return err
		}
	} else {
		fm.fileValiditySizes = make([]uint64, n)
	}

	fm.gt.rtree, err = r.u64()
	if err != nil {
		return err
	}
	if fm.gt.tileOffsets, err = r.u64s(n); err != nil {
		return err
	}
	if fm.gt.tileVarOffsets, err = r.u64s(n); err != nil {
		return err
	}
	if fm.gt.tileVarSizes, err = r.u64s(n); err != nil {
		return err
	}
	if version >= 7 {
		if fm.gt.tileValidityOffsets, err = r.u64s(n); err != nil {
			return err
		}
	} else {
		fm.gt.tileValidityOffsets = make([]uint64, n)
	}
	if version >= 11 {
		if fm.gt.tileMin, err = r.u64s(n); err != nil {
			return err
		}
		if fm.gt.tileMax, err = r.u64s(n); err != nil {
			return err
		}
		if fm.gt.tileSum, err = r.u64s(n); err != nil {
			return err
		}
		if fm.gt.tileNullCount, err = r.u64s(n); err != nil {
			return err
		}
	}
	if version >= 12 {
		if fm.gt.fragmentMinMaxSumNullCnt, err = r.u64(); err != nil {
			return err
		}
	}
	if version >= 16 {
		if fm.gt.processedConditions, err = r.u64(); err != nil {
			return err
		}
	}

	fm.tileOffsets = make([][]uint64, n)
	fm.tileVarOffsets = make([][]uint64, n)
	fm.tileVarSizes = make([][]uint64, n)
	fm.tileValidityOffsets = make([][]uint64, n)
	fm.tileMinFixed = make([][]byte, n)
	fm.tileMinVar = make([][]byte, n)
	fm.tileMinVarOffsets = make([][]uint64, n)
	fm.tileMaxFixed = make([][]byte, n)
	fm.tileMaxVar = make([][]byte, n)
	fm.tileMaxVarOffsets = make([][]uint64, n)
	fm.tileSums = make([][]uint64, n)
	fm.tileNullCounts = make([][]uint64, n)
	fm.fragmentMins = make([][]byte, n)
	fm.fragmentMaxs = make([][]byte, n)
	fm.fragmentSums = make([]uint64, n)
	fm.fragmentNullCounts = make([]uint64, n)
	fm.loaded = roaring.New()

	return nil
}
