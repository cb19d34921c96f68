package fragment

import (
	"math"

	"soltix.dev/fragstore/internal/dimension"
)

// ComputeFragmentMinMaxSumNullCount reduces every column's per-tile
// min/max/sum/null_count into a per-fragment roll-up, per spec.md §4.4.1
// step 4 and §4.4.5. Null-count reduction is a saturation-free sum; sums
// saturate at the type's extremum; min/max skip tiles whose null_count ==
// cell_num(t).
func (fm *FragmentMetadata) ComputeFragmentMinMaxSumNullCount() error {
	numTiles := fm.tileNumInternal()
	for idx, col := range fm.idx.columns {
		dt, varLen, hasStats := fm.statColumnType(col)
		if !hasStats {
			continue
		}

		var nullCount uint64
		for t := 0; t < int(numTiles); t++ {
			if len(fm.tileNullCounts[idx]) > t {
				nullCount += fm.tileNullCounts[idx][t]
			}
		}
		fm.fragmentNullCounts[idx] = nullCount

		if dt.IsInteger() {
			fm.computeFragmentMinMaxSumInt(idx, dt, numTiles)
		} else if dt.IsFloat() {
			fm.computeFragmentMinMaxSumFloat(idx, numTiles)
		} else if varLen {
			fm.computeFragmentMinMaxVar(idx, numTiles)
		}
	}
	return nil
}

// statColumnType resolves the datatype and whether the column maintains
// min/max/sum/null_count statistics at all (dimensions and the coords
// pseudo-attribute never do, per spec.md §4.4.3's NotApplicable branch).
func (fm *FragmentMetadata) statColumnType(col column) (dimension.Datatype, bool, bool) {
	if col.idx < fm.idx.numAttrs {
		a := fm.schema.Attributes()[col.idx]
		return a.Datatype(), a.IsVarLength(), true
	}
	return 0, false, false
}

func (fm *FragmentMetadata) computeFragmentMinMaxSumInt(idx int, dt dimension.Datatype, numTiles uint64) {
	signed := dt.IsSignedInteger()
	var haveAny bool
	var minI, maxI int64
	var minU, maxU uint64
	var sumI int64
	var sumU uint64

	width := dt.ByteWidth()
	for t := 0; t < int(numTiles); t++ {
		if fm.tileNullCounts[idx] != nil && t < len(fm.tileNullCounts[idx]) {
			cn := fm.cellNumInternal(uint64(t))
			if fm.tileNullCounts[idx][t] == cn {
				continue
			}
		}
		if t*width+width > len(fm.tileMinFixed[idx]) {
			continue
		}
		minBytes := fm.tileMinFixed[idx][t*width : t*width+width]
		maxBytes := fm.tileMaxFixed[idx][t*width : t*width+width]

		if signed {
			mn := dimension.DecodeInt64(dt, minBytes)
			mx := dimension.DecodeInt64(dt, maxBytes)
			if !haveAny || mn < minI {
				minI = mn
			}
			if !haveAny || mx > maxI {
				maxI = mx
			}
		} else {
			mn := dimension.DecodeUint64(dt, minBytes)
			mx := dimension.DecodeUint64(dt, maxBytes)
			if !haveAny || mn < minU {
				minU = mn
			}
			if !haveAny || mx > maxU {
				maxU = mx
			}
		}

		if idx < len(fm.tileSums) && t < len(fm.tileSums[idx]) {
			if signed {
				sumI = saturatingAddInt64(sumI, int64(fm.tileSums[idx][t]))
			} else {
				sumU = saturatingAddUint64(sumU, fm.tileSums[idx][t])
			}
		}
		haveAny = true
	}
	if !haveAny {
		return
	}
	if signed {
		fm.fragmentMins[idx] = dimension.EncodeInt64(dt, minI)
		fm.fragmentMaxs[idx] = dimension.EncodeInt64(dt, maxI)
		fm.fragmentSums[idx] = uint64(sumI)
	} else {
		fm.fragmentMins[idx] = dimension.EncodeUint64(dt, minU)
		fm.fragmentMaxs[idx] = dimension.EncodeUint64(dt, maxU)
		fm.fragmentSums[idx] = sumU
	}
}

func (fm *FragmentMetadata) computeFragmentMinMaxSumFloat(idx int, numTiles uint64) {
	dt, _, _ := fm.statColumnType(fm.idx.columns[idx])
	var haveAny bool
	var minF, maxF, sumF float64
	width := dt.ByteWidth()

	for t := 0; t < int(numTiles); t++ {
		if fm.tileNullCounts[idx] != nil && t < len(fm.tileNullCounts[idx]) {
			cn := fm.cellNumInternal(uint64(t))
			if fm.tileNullCounts[idx][t] == cn {
				continue
			}
		}
		if t*width+width > len(fm.tileMinFixed[idx]) {
			continue
		}
		mn := dimension.DecodeFloat64(dt, fm.tileMinFixed[idx][t*width:t*width+width])
		mx := dimension.DecodeFloat64(dt, fm.tileMaxFixed[idx][t*width:t*width+width])
		if !haveAny || mn < minF {
			minF = mn
		}
		if !haveAny || mx > maxF {
			maxF = mx
		}
		if idx < len(fm.tileSums) && t < len(fm.tileSums[idx]) {
			sumF = saturatingAddFloat64(sumF, math.Float64frombits(fm.tileSums[idx][t]))
		}
		haveAny = true
	}
	if !haveAny {
		return
	}
	fm.fragmentMins[idx] = dimension.EncodeFloat64(dt, minF)
	fm.fragmentMaxs[idx] = dimension.EncodeFloat64(dt, maxF)
	fm.fragmentSums[idx] = math.Float64bits(sumF)
}

// computeFragmentMinMaxVar walks per-tile offsets and keeps the
// byte-lexicographic minimum of the tiles' minimums and maximum of their
// maximums, per spec.md §4.4.5 ("Variable-length min_max_var(name)...").
func (fm *FragmentMetadata) computeFragmentMinMaxVar(idx int, numTiles uint64) {
	var haveAny bool
	var minV, maxV []byte
	for t := 0; t < int(numTiles); t++ {
		if fm.tileNullCounts[idx] != nil && t < len(fm.tileNullCounts[idx]) {
			cn := fm.cellNumInternal(uint64(t))
			if fm.tileNullCounts[idx][t] == cn {
				continue
			}
		}
		v, ok := tileMinVarAt(fm.tileMinVarOffsets[idx], fm.tileMinVar[idx], t)
		if !ok {
			continue
		}
		if !haveAny || bytesLess(v, minV) {
			minV = v
		}
		v2, _ := tileMinVarAt(fm.tileMaxVarOffsets[idx], fm.tileMaxVar[idx], t)
		if !haveAny || bytesLess(maxV, v2) {
			maxV = v2
		}
		haveAny = true
	}
	fm.fragmentMins[idx] = minV
	fm.fragmentMaxs[idx] = maxV
}

func tileMinVarAt(offsets []uint64, buf []byte, t int) ([]byte, bool) {
	if t < 0 || t >= len(offsets) {
		return nil, false
	}
	start := offsets[t]
	var end uint64
	if t+1 < len(offsets) {
		end = offsets[t+1]
	} else {
		end = uint64(len(buf))
	}
	if start > uint64(len(buf)) || end > uint64(len(buf)) || start > end {
		return nil, false
	}
	return buf[start:end], true
}

func bytesLess(a, b []byte) bool {
	if a == nil {
		return b != nil
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func saturatingAddInt64(a, b int64) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func saturatingAddUint64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}

func saturatingAddFloat64(a, b float64) float64 {
	sum := a + b
	if math.IsInf(sum, 1) {
		return math.MaxFloat64
	}
	if math.IsInf(sum, -1) {
		return -math.MaxFloat64
	}
	return sum
}
