package coordinator

import "time"

// Options holds coordinator tuning. Zero values fall back to defaults.
type Options struct {
	// PrimaryTimeout bounds every primary-store operation. Exceeding it
	// fails the whole call.
	PrimaryTimeout time.Duration

	// EmbedTimeout bounds embedding calls.
	EmbedTimeout time.Duration

	// MirrorTimeout bounds best-effort operations; a timeout is treated
	// identically to a failure.
	MirrorTimeout time.Duration

	// MirrorTimeouts overrides MirrorTimeout per backend name. Mirrors may
	// be slower or less reliable than the primary.
	MirrorTimeouts map[string]time.Duration

	// Overfetch multiplies the caller's limit on each backend search.
	Overfetch int

	// MaxLimit clamps caller-supplied limits.
	MaxLimit int

	// MaxMetadataBytes bounds serialized metadata size per chunk.
	MaxMetadataBytes int
}

func (o *Options) defaults() {
	if o.PrimaryTimeout <= 0 {
		o.PrimaryTimeout = 5 * time.Second
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = 15 * time.Second
	}
	if o.MirrorTimeout <= 0 {
		o.MirrorTimeout = 3 * time.Second
	}
	if o.Overfetch <= 0 {
		o.Overfetch = 2
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 100
	}
	if o.MaxMetadataBytes <= 0 {
		o.MaxMetadataBytes = 8192
	}
}
