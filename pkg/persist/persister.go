package persist

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Filename is the name of the file the persister reads and writes.
func (p *Persister[T]) Filename() string {
	return p.basename + p.codec.Extension()
}

// Save writes state to dir.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.basename, p.codec, state)
}

// Load reads a fresh T from dir.
func (p *Persister[T]) Load(dir string) (*T, error) {
	state := new(T)

	err := LoadState(dir, p.basename, p.codec, state)
	if err != nil {
		return nil, err
	}

	return state, nil
}
