package fragment

// encodeU64Vector implements the shared "u64 n; [u64] values[n]" shape used
// by tile_offsets[i], tile_var_offsets[i], tile_var_sizes[i],
// tile_validity_offsets[i], tile_sums[i], and tile_null_counts[i], per
// spec.md §6.
func encodeU64Vector(values []uint64) []byte {
	w := &byteWriter{}
	w.u64(uint64(len(values)))
	w.u64s(values)
	return w.buf
}

func decodeU64Vector(buf []byte) ([]uint64, error) {
	r := &byteReader{buf: buf}
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	return r.u64s(int(n))
}

// encodeTileMinMax implements the "u64 fixed_buf_size; u64 var_buf_size;
// u64 n_offsets; [u64] var_offsets[n_offsets]; bytes fixed_buf; bytes
// var_buf" shape for tile_min[i]/tile_max[i]. var_offsets is empty for
// fixed-width columns, one prefix-sum offset per tile for var-length ones.
func encodeTileMinMax(fixedBuf, varBuf []byte, varOffsets []uint64) []byte {
	w := &byteWriter{}
	w.u64(uint64(len(fixedBuf)))
	w.u64(uint64(len(varBuf)))
	w.u64(uint64(len(varOffsets)))
	w.u64s(varOffsets)
	w.bytes(fixedBuf)
	w.bytes(varBuf)
	return w.buf
}

func decodeTileMinMax(buf []byte) (fixedBuf, varBuf []byte, varOffsets []uint64, err error) {
	r := &byteReader{buf: buf}
	fixedSize, err := r.u64()
	if err != nil {
		return nil, nil, nil, err
	}
	varSize, err := r.u64()
	if err != nil {
		return nil, nil, nil, err
	}
	nOffsets, err := r.u64()
	if err != nil {
		return nil, nil, nil, err
	}
	varOffsets, err = r.u64s(int(nOffsets))
	if err != nil {
		return nil, nil, nil, err
	}
	fixedBuf, err = r.bytesN(int(fixedSize))
	if err != nil {
		return nil, nil, nil, err
	}
	varBuf, err = r.bytesN(int(varSize))
	if err != nil {
		return nil, nil, nil, err
	}
	return fixedBuf, varBuf, varOffsets, nil
}

// encodeFragmentMinMaxSumNullCount implements the per-fragment roll-up
// section: for each column in order, "u64 min_size, bytes min; u64
// max_size, bytes max; u64 sum; u64 null_count".
func (fm *FragmentMetadata) encodeFragmentMinMaxSumNullCount() []byte {
	w := &byteWriter{}
	n := fm.idx.numCols()
	for i := 0; i < n; i++ {
		min := fm.fragmentMins[i]
		max := fm.fragmentMaxs[i]
		w.u64(uint64(len(min)))
		w.bytes(min)
		w.u64(uint64(len(max)))
		w.bytes(max)
		w.u64(fm.fragmentSums[i])
		w.u64(fm.fragmentNullCounts[i])
	}
	return w.buf
}

func (fm *FragmentMetadata) decodeFragmentMinMaxSumNullCount(buf []byte) error {
	r := &byteReader{buf: buf}
	n := fm.idx.numCols()
	for i := 0; i < n; i++ {
		minSize, err := r.u64()
		if err != nil {
			return err
		}
		min, err := r.bytesN(int(minSize))
		if err != nil {
			return err
		}
		maxSize, err := r.u64()
		if err != nil {
			return err
		}
		max, err := r.bytesN(int(maxSize))
		if err != nil {
			return err
		}
		sum, err := r.u64()
		if err != nil {
			return err
		}
		nullCount, err := r.u64()
		if err != nil {
			return err
		}
		fm.fragmentMins[i] = append([]byte{}, min...)
		fm.fragmentMaxs[i] = append([]byte{}, max...)
		fm.fragmentSums[i] = sum
		fm.fragmentNullCounts[i] = nullCount
	}
	return nil
}

// encodeProcessedConditions implements "u64 n; [u64 len, bytes]xn".
func (fm *FragmentMetadata) encodeProcessedConditions() []byte {
	w := &byteWriter{}
	w.u64(uint64(len(fm.processedConditions)))
	for _, c := range fm.processedConditions {
		w.u64(uint64(len(c)))
		w.bytes(c)
	}
	return w.buf
}

func (fm *FragmentMetadata) decodeProcessedConditions(buf []byte) error {
	r := &byteReader{buf: buf}
	n, err := r.u64()
	if err != nil {
		return err
	}
	out := make([][]byte, n)
	for i := range out {
		l, err := r.u64()
		if err != nil {
			return err
		}
		b, err := r.bytesN(int(l))
		if err != nil {
			return err
		}
		out[i] = append([]byte{}, b...)
	}
	fm.processedConditions = out
	return nil
}
