package pipelinekit

import (
	"context"
	"testing"
)

func TestSemaphorePresetValues(t *testing.T) {
	cases := []struct {
		name           string
		preset         SemaphorePreset
		maxConcurrency int
		maxOutstanding int
	}{
		{"highThroughput", PresetHighThroughput, 50, 200},
		{"lowLatency", PresetLowLatency, 5, 10},
		{"default", PresetDefault, 10, 50},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.preset.MaxConcurrency != c.maxConcurrency {
				t.Errorf("expected MaxConcurrency %d, got %d", c.maxConcurrency, c.preset.MaxConcurrency)
			}
			if c.preset.MaxOutstanding != c.maxOutstanding {
				t.Errorf("expected MaxOutstanding %d, got %d", c.maxOutstanding, c.preset.MaxOutstanding)
			}
			if c.preset.Strategy != StrategySuspend {
				t.Errorf("expected StrategySuspend, got %v", c.preset.Strategy)
			}
		})
	}
}

func TestUnlimitedPresetSkipsTheGate(t *testing.T) {
	if PresetUnlimited.NewSemaphore("x") != nil {
		t.Error("expected the unlimited preset to produce no Semaphore")
	}
}

type presetCmd struct{ N int }
type presetResult struct{ N int }

func TestRegisterWithPreset(t *testing.T) {
	bus := NewBus()
	h := HandlerFunc[presetCmd, presetResult](func(_ context.Context, cmd presetCmd) (presetResult, error) {
		return presetResult{N: cmd.N * 2}, nil
	})
	if err := RegisterWithPreset[presetCmd, presetResult](bus, "doubler", h, PresetLowLatency, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := bus.NewDispatchContext(context.Background(), NewMetadata())
	result, err := Send[presetCmd, presetResult](bus, ctx, presetCmd{N: 21})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.N != 42 {
		t.Errorf("expected 42, got %d", result.N)
	}
}
