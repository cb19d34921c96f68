package filter

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdPipeline is an alternate generic-tile codec, grounded on
// hupe1980-vecgo's use of klauspost/compress for its vector-store payloads.
type ZstdPipeline struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdPipeline creates the Zstd codec (filter_pipeline_version 1).
func NewZstdPipeline() *ZstdPipeline {
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &ZstdPipeline{encoder: enc, decoder: dec}
}

func (z *ZstdPipeline) Version() uint32 { return 1 }

func (z *ZstdPipeline) Apply(plain []byte) ([]byte, error) {
	return z.encoder.EncodeAll(plain, nil), nil
}

func (z *ZstdPipeline) Unapply(filtered []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(filtered, nil)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}
