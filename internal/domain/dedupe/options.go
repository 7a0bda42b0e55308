package dedupe

const defaultMaxSize = 256

// Option applies a configuration option to the tag set.
type Option func(*tagSet)

// WithMaxSize bounds the number of remembered tags. Values <= 0 disable the
// bound.
func WithMaxSize(maxSize int) Option {
	return func(d *tagSet) {
		d.maxSize = maxSize
	}
}
