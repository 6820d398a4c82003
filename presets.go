package pipelinekit

import "time"

// SemaphorePreset is a named, pre-tuned Semaphore configuration: the
// maxConcurrency/maxOutstanding/backPressureStrategy triple a caller would
// otherwise have to pick by hand.
type SemaphorePreset struct {
	MaxConcurrency int
	MaxOutstanding int
	Strategy       BackpressureStrategy
}

// Recognized presets. MaxConcurrency of 0 means unlimited: NewSemaphore
// returns nil and RegisterWithPreset skips the back-pressure layer
// entirely, matching ResilienceOptions' convention of installing nothing
// for an absent layer rather than a pass-through no-op.
var (
	PresetUnlimited = SemaphorePreset{}
	PresetHighThroughput = SemaphorePreset{
		MaxConcurrency: 50, MaxOutstanding: 200, Strategy: StrategySuspend,
	}
	PresetLowLatency = SemaphorePreset{
		MaxConcurrency: 5, MaxOutstanding: 10, Strategy: StrategySuspend,
	}
	PresetDefault = SemaphorePreset{
		MaxConcurrency: 10, MaxOutstanding: 50, Strategy: StrategySuspend,
	}
)

// NewSemaphore builds a Semaphore named name from the preset, or nil for
// PresetUnlimited.
func (p SemaphorePreset) NewSemaphore(name string) *Semaphore {
	if p.MaxConcurrency <= 0 {
		return nil
	}
	return NewSemaphore(p.MaxConcurrency,
		WithMaxOutstanding(p.MaxOutstanding),
		WithBackpressureStrategy(p.Strategy),
		WithSemaphoreName(name),
	)
}

// RegisterWithPreset registers handler on b under name, gating it with the
// Semaphore built from preset (or no gate at all for PresetUnlimited).
// semaphoreTimeout only matters for StrategyError presets; it is ignored
// otherwise.
func RegisterWithPreset[C Command, R any](b *Bus, name string, handler Handler[C, R], preset SemaphorePreset, semaphoreTimeout time.Duration, middlewares ...Middleware[C, R]) error {
	return RegisterResilient[C, R](b, name, handler, ResilienceOptions[C, R]{
		Semaphore:        preset.NewSemaphore(name),
		SemaphoreTimeout: semaphoreTimeout,
	}, middlewares...)
}
