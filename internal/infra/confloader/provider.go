package confloader

import "errors"

// ErrReadBytesNotSupported is returned when koanf asks a map provider
// for raw bytes.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form, use Read")

// mapProvider adapts a flat dotted-key map to koanf's Provider
// interface.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
