package filter

import "github.com/golang/snappy"

// SnappyPipeline is the default generic-tile codec, grounded on the
// teacher's internal/compression/snappy.go.
type SnappyPipeline struct{}

// NewSnappyPipeline creates the Snappy codec (filter_pipeline_version 0).
func NewSnappyPipeline() *SnappyPipeline { return &SnappyPipeline{} }

func (s *SnappyPipeline) Version() uint32 { return 0 }

func (s *SnappyPipeline) Apply(plain []byte) ([]byte, error) {
	return snappy.Encode(nil, plain), nil
}

func (s *SnappyPipeline) Unapply(filtered []byte) ([]byte, error) {
	return snappy.Decode(nil, filtered)
}
