package memory

import (
	"context"

	"millstock/pkg/numerator"
)

var _ numerator.Sequencer = (*Store)(nil)

// Next advances a sequence by step and returns the new value. Sequences are
// not transactional, like database sequences.
func (s *Store) Next(ctx context.Context, key string, step int64) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[key] += step
	return s.sequences[key], nil
}

// Set moves a sequence so that the next Next(key, 1) returns value+1.
func (s *Store) Set(ctx context.Context, key string, value int64) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.sequences[key] = value
	return nil
}
