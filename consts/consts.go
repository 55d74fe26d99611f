package consts

const (
	// DefaultPrefetch is small because items are body chunks that already take
	// non-trivial space (16KiB each on a typical HTTP/2 connection).
	DefaultPrefetch = 16
	// DefaultPrefetchFactor requests more once half of the prefetch is consumed.
	DefaultPrefetchFactor = 50
	MaxPrefetchFactor     = 100

	DefaultChunkSize = 16384 // matches the default HTTP/2 max frame payload

	PrefetchKey       = "bodyflow.flow.prefetch"
	PrefetchFactorKey = "bodyflow.flow.prefetchFactor"
	EnvPrefix         = "BODYFLOW"
)
