package shared

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// CandleSnapshot represents a fixed-size ring buffer of candles.
type CandleSnapshot struct {
	data    []*Candle
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewCandleSnapshot initializes a new candle snapshot.
func NewCandleSnapshot(size int32) (*CandleSnapshot, error) {
	if size < 0 {
		return nil, errors.New("snapshot size cannot be negative")
	}
	if size == 0 {
		return nil, errors.New("snapshot size cannot be zero")
	}

	snapshot := &CandleSnapshot{
		data: make([]*Candle, size),
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided candle to the snapshot.
func (s *CandleSnapshot) Update(candle *Candle) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = candle

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}
}

// LastN fetches the last n number of elements from the snapshot, oldest first.
func (s *CandleSnapshot) LastN(n int32) []*Candle {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()

	// Clamp the number of elements expected if it is greater than the snapshot count.
	if n > count {
		n = count
	}

	set := make([]*Candle, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = s.data[idx]
	}

	return set
}

// AverageVolumeN returns the average volume of up to n candles preceding the most recent
// one along with the number of candles averaged.
func (s *CandleSnapshot) AverageVolumeN(n int32) (float64, int32) {
	candles := s.LastN(n + 1)
	if len(candles) < 2 {
		return 0, 0
	}

	prior := candles[:len(candles)-1]

	var volumeSum float64
	for idx := range prior {
		volumeSum += prior[idx].Volume
	}

	return volumeSum / float64(len(prior)), int32(len(prior))
}
