package main

import (
	"slices"
	"sync"
	"time"
)

// presetStepper moves the tempo through the configured speed presets in response to the
// faster/slower hotkeys. A burst of presses in the same direction (burstCount presses inside
// window) skips an extra preset per press.
//
// Thread-safe: hotkeys and IPC may call step() concurrently.
type presetStepper struct {
	presets    []float64 // ascending, deduplicated
	window     time.Duration
	burstCount int

	mu          sync.Mutex
	recentSteps []presetStep
}

// presetStep records a single press.
type presetStep struct {
	timestamp time.Time
	direction int // +1 for faster, -1 for slower
}

func newPresetStepper(presets []float64, window time.Duration, burstCount int) *presetStepper {
	p := slices.Clone(presets)
	slices.Sort(p)
	p = slices.Compact(p)
	return &presetStepper{
		presets:     p,
		window:      window,
		burstCount:  burstCount,
		recentSteps: make([]presetStep, 0, 16),
	}
}

// addStep records a press and returns the count of recent presses in the same direction
// within the window, including this one.
func (s *presetStepper) addStep(direction int, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)

	// Remove old steps outside the window
	filtered := s.recentSteps[:0] // reuse underlying array
	for _, st := range s.recentSteps {
		if st.timestamp.After(cutoff) {
			filtered = append(filtered, st)
		}
	}

	filtered = append(filtered, presetStep{timestamp: now, direction: direction})
	s.recentSteps = filtered

	sameDir := 0
	for _, st := range filtered {
		if st.direction == direction {
			sameDir++
		}
	}
	return sameDir
}

// step returns the preset reached from current by one press in direction. current need not be
// a preset itself: the first step lands on the nearest preset beyond it. At either end the
// extreme preset is returned. ok is false when there are no presets.
func (s *presetStepper) step(current float64, direction int, now time.Time) (tempo float64, ok bool) {
	if len(s.presets) == 0 || direction == 0 {
		return current, false
	}

	n := 1
	if s.burstCount > 0 && s.addStep(direction, now) >= s.burstCount {
		n = 2
	}

	var i int
	if direction > 0 {
		// First preset strictly above current.
		i = len(s.presets)
		for j, v := range s.presets {
			if v > current {
				i = j
				break
			}
		}
		i += n - 1
	} else {
		// Last preset strictly below current.
		i = -1
		for j := len(s.presets) - 1; j >= 0; j-- {
			if s.presets[j] < current {
				i = j
				break
			}
		}
		i -= n - 1
	}

	i = min(max(i, 0), len(s.presets)-1)
	return s.presets[i], true
}
