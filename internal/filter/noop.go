package filter

// NoopPipeline applies no transform. It exists so callers that need a
// generic tile's persisted size to equal its plain size deterministically
// (pre-v10 fragment footers located by formula rather than a trailing
// size, per spec.md §6) have a codec whose persisted size never depends on
// the payload's content.
type NoopPipeline struct{}

// NoopVersion is NoopPipeline's filter_pipeline_version.
const NoopVersion = 0xFFFFFFFF

func NewNoopPipeline() *NoopPipeline { return &NoopPipeline{} }

func (p *NoopPipeline) Version() uint32 { return NoopVersion }

func (p *NoopPipeline) Apply(plain []byte) ([]byte, error) { return plain, nil }

func (p *NoopPipeline) Unapply(filtered []byte) ([]byte, error) { return filtered, nil }
