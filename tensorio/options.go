package tensorio

// Option configures how a tensor is written.
type Option func(*options)

type options struct {
	codec Codec
	level int
}

func defaultOptions() *options {
	return &options{codec: CodecZstd}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets the .tns payload codec. Zstd is the default.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLevel sets the compression level: 1-22 for zstd, 1-9 for lz4. Zero
// keeps the codec default.
func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}
