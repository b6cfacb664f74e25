package main

import (
	"testing"
	"time"
)

var testPresets = []float64{1200, 600, 1000, 800, 1000}

func TestPresetStepper_StepsThroughPresets(t *testing.T) {
	s := newPresetStepper(testPresets, 0, 0)
	now := time.Now()

	cases := []struct {
		current float64
		dir     int
		want    float64
	}{
		{1000, +1, 1200},
		{1200, +1, 1200}, // clamped at the top
		{1000, -1, 800},
		{600, -1, 600}, // clamped at the bottom
		{900, +1, 1000},
		{900, -1, 800},
		{100, +1, 600},
		{2000, -1, 1200},
	}
	for _, tc := range cases {
		got, ok := s.step(tc.current, tc.dir, now)
		if !ok || got != tc.want {
			t.Errorf("step(%v, %+d) = %v (ok=%v), want %v", tc.current, tc.dir, got, ok, tc.want)
		}
	}
}

func TestPresetStepper_NoPresets(t *testing.T) {
	s := newPresetStepper(nil, time.Second, 3)
	if got, ok := s.step(1000, +1, time.Now()); ok || got != 1000 {
		t.Fatalf("expected no-op, got %v ok=%v", got, ok)
	}
}

func TestPresetStepper_BurstSkipsPresets(t *testing.T) {
	s := newPresetStepper([]float64{600, 700, 800, 900, 1000, 1100, 1200}, 400*time.Millisecond, 3)
	now := time.Now()

	tempo := 600.0
	var got []float64
	for i := 0; i < 4; i++ {
		tempo, _ = s.step(tempo, +1, now.Add(time.Duration(i)*50*time.Millisecond))
		got = append(got, tempo)
	}
	// Third and fourth presses are a burst and skip a preset each.
	want := []float64{700, 800, 1000, 1200}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("burst sequence = %v, want %v", got, want)
		}
	}

	// After the window the next press is a single step again.
	tempo, _ = s.step(1000, -1, now.Add(2*time.Second))
	if tempo != 900 {
		t.Fatalf("expected single step to 900 after window, got %v", tempo)
	}
}

func TestPresetStepper_AddStep_DirectionChange(t *testing.T) {
	s := newPresetStepper(nil, 200*time.Millisecond, 0)
	now := time.Now()

	s.addStep(1, now)
	s.addStep(1, now)
	if count := s.addStep(1, now); count != 3 {
		t.Errorf("expected 3 up steps, got %d", count)
	}
	if count := s.addStep(-1, now); count != 1 {
		t.Errorf("expected count=1 for new direction, got %d", count)
	}
	if count := s.addStep(1, now); count != 4 {
		t.Errorf("expected count=4 (3 old + 1 new up steps still in window), got %d", count)
	}
}

func TestPresetStepper_AddStep_PartialExpiry(t *testing.T) {
	s := newPresetStepper(nil, 100*time.Millisecond, 0)
	start := time.Now()

	s.addStep(1, start)
	s.addStep(1, start.Add(60*time.Millisecond))
	s.addStep(1, start.Add(60*time.Millisecond))

	// 120ms from the first step, 60ms from the last two.
	if count := s.addStep(1, start.Add(120*time.Millisecond)); count != 3 {
		t.Errorf("expected count=3 (2 recent + 1 new), got %d", count)
	}
}

func TestPresetStepper_AddStep_ZeroWindow(t *testing.T) {
	s := newPresetStepper(nil, 0, 0)
	now := time.Now()
	if count := s.addStep(1, now); count != 1 {
		t.Errorf("expected count=1 with zero window, got %d", count)
	}
	if count := s.addStep(1, now.Add(time.Millisecond)); count != 1 {
		t.Errorf("expected count=1 with zero window (previous expired), got %d", count)
	}
}

func TestPresetStepper_Concurrent(t *testing.T) {
	s := newPresetStepper(testPresets, time.Second, 3)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(dir int) {
			for j := 0; j < 100; j++ {
				s.step(1000, dir, time.Now())
			}
			done <- true
		}(i%2*2 - 1) // alternate between 1 and -1
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if count := s.addStep(1, time.Now()); count < 1 {
		t.Errorf("expected at least 1 step, got %d", count)
	}
}
