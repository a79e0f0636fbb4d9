package artifact

import (
	"fmt"
)

// Registry holds, per categorical field, the ordered category list fixed at
// training time and its value→code lookup built once at load.
//
// Unseen values are silently substituted with the field's fallback category
// (the first class in training order). This is load-bearing for
// reproducibility against the trained artifacts: a different fallback
// changes the model input distribution without any visible error.
type Registry struct {
	fields map[string]*fieldEncoder
}

type fieldEncoder struct {
	classes []string
	codes   map[string]int
}

// NewRegistry builds a registry from field → ordered class list.
func NewRegistry(classes map[string][]string) (*Registry, error) {
	fields := make(map[string]*fieldEncoder, len(classes))
	for name, list := range classes {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: encoder %q has no classes", ErrBadArtifact, name)
		}
		enc := &fieldEncoder{
			classes: list,
			codes:   make(map[string]int, len(list)),
		}
		for i, c := range list {
			enc.codes[c] = i
		}
		fields[name] = enc
	}
	return &Registry{fields: fields}, nil
}

// Encode returns the fixed integer code for value in field. Unseen values
// map to the fallback category's code; a field with no registry entry at
// all is a configuration error.
func (r *Registry) Encode(field, value string) (int, error) {
	enc, ok := r.fields[field]
	if !ok {
		return 0, fmt.Errorf("%w: no encoder for field %q", ErrMissingEncoder, field)
	}
	if code, ok := enc.codes[value]; ok {
		return code, nil
	}
	return enc.codes[enc.classes[0]], nil
}

// Fallback returns the designated fallback category for a field.
func (r *Registry) Fallback(field string) (string, error) {
	enc, ok := r.fields[field]
	if !ok {
		return "", fmt.Errorf("%w: no encoder for field %q", ErrMissingEncoder, field)
	}
	return enc.classes[0], nil
}

// Fields returns the names of all registered categorical fields.
func (r *Registry) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	return names
}

// Classes returns the ordered class list for a field, or nil if absent.
func (r *Registry) Classes(field string) []string {
	enc, ok := r.fields[field]
	if !ok {
		return nil
	}
	return enc.classes
}
