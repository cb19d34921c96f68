package domain

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"soltix.dev/fragstore/internal/dimension"
)

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func extentRangeOf(width []byte) dimension.Range {
	return dimension.NewFixedRange(width, width)
}

func twoDimDomain(t *testing.T) *Domain {
	xExt := extentRangeOf(u32b(10))
	x, err := dimension.New("x", dimension.Uint32, 1, dimension.NewFixedRange(u32b(0), u32b(99)), &xExt)
	require.NoError(t, err)
	yExt := extentRangeOf(u32b(5))
	y, err := dimension.New("y", dimension.Uint32, 1, dimension.NewFixedRange(u32b(0), u32b(49)), &yExt)
	require.NoError(t, err)
	dom, err := New([]*dimension.Dimension{x, y}, RowMajor, TileRowMajor, 0)
	require.NoError(t, err)
	return dom
}

func TestDomainRejectsEmpty(t *testing.T) {
	_, err := New(nil, RowMajor, TileRowMajor, 0)
	require.Error(t, err)
}

func TestDomainCellNumPerTile(t *testing.T) {
	dom := twoDimDomain(t)
	require.Equal(t, uint64(50), dom.CellNumPerTile()) // 10 * 5
}

func TestDomainTileNumDense(t *testing.T) {
	dom := twoDimDomain(t)
	full := dom.NDRangeFullDomain()
	require.Equal(t, uint64(10*10), dom.TileNumDense(full)) // x: 100/10=10 tiles, y: 50/5=10 tiles
}

func TestDomainExpandAndCropNDRange(t *testing.T) {
	dom := twoDimDomain(t)
	nd := NDRange{
		dimension.NewFixedRange(u32b(3), u32b(12)),
		dimension.NewFixedRange(u32b(0), u32b(3)),
	}
	cropped := dom.CropNDRange(nd)
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(cropped[0].Low()))

	expanded := dom.ExpandToTiles(cropped)
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(expanded[0].Low()))
	require.Equal(t, uint32(19), binary.LittleEndian.Uint32(expanded[0].High()))
}

func TestDomainAllFixedAndVarLengthUsed(t *testing.T) {
	dom := twoDimDomain(t)
	require.True(t, dom.AllFixed())
	require.False(t, dom.VarLengthUsed())
}

func TestDomainLinearTileIDRowMajor(t *testing.T) {
	dom := twoDimDomain(t) // x: 10 tiles, y: 10 tiles, row-major
	require.Equal(t, uint64(0), dom.LinearTileID(TileCoords{0, 0}))
	require.Equal(t, uint64(1), dom.LinearTileID(TileCoords{0, 1}))
	require.Equal(t, uint64(10), dom.LinearTileID(TileCoords{1, 0}))
	require.Equal(t, uint64(23), dom.LinearTileID(TileCoords{2, 3}))
}

func TestDomainGetNextTileCoordsWithinNDRange(t *testing.T) {
	dom := twoDimDomain(t)
	nd := NDRange{
		dimension.NewFixedRange(u32b(0), u32b(19)), // 2 tiles along x
		dimension.NewFixedRange(u32b(0), u32b(14)), // 3 tiles along y
	}
	coords := TileCoords{0, 0}
	var seq []TileCoords
	ok := true
	for ok {
		seq = append(seq, append(TileCoords{}, coords...))
		coords, ok = dom.GetNextTileCoords(nd, coords)
	}
	require.Len(t, seq, 6) // 2 x 3 grid, last step reports ok=false
}

func TestNDRangeEmpty(t *testing.T) {
	var nd NDRange
	require.True(t, nd.Empty())

	nd = NDRange{dimension.NewFixedRange(u32b(0), u32b(1))}
	require.False(t, nd.Empty())

	nd = NDRange{dimension.Range{}}
	require.True(t, nd.Empty())
}
