package feature

import (
	"sort"

	"alphaspike/internal/domain/models"
)

// Result is a detector's verdict for the last bar of a series.
type Result struct {
	Signal  bool
	Metrics map[string]float64
}

// Detector is a pure function over an ordered bar series. It inspects
// the series as of its final bar and never mutates it.
type Detector func(s models.BarSeries) Result

// Config binds a detector to its name and minimum history requirement.
// A series shorter than MinDays is skipped without invoking Detect.
type Config struct {
	Name    string
	MinDays int
	Detect  Detector
}

// Registry is an immutable name->detector mapping built once at
// startup and passed by reference to the engines.
type Registry struct {
	configs []Config
	byName  map[string]Config
}

// NewRegistry builds the default detector set.
func NewRegistry() *Registry {
	return NewRegistryWith([]Config{
		{Name: "bbc", MinDays: 1000, Detect: BBC},
		{Name: "volume_upper_shadow", MinDays: 220, Detect: VolumeUpperShadow},
		{Name: "volume_upper_shadow_v2", MinDays: 220, Detect: VolumeUpperShadowV2},
		{Name: "volume_upper_shadow_opz", MinDays: 220, Detect: VolumeUpperShadowOpz},
		{Name: "volume_stagnation", MinDays: 550, Detect: VolumeStagnation},
		{Name: "high_retracement", MinDays: 1500, Detect: HighRetracement},
		{Name: "consolidation_breakout", MinDays: 60, Detect: ConsolidationBreakout},
		{Name: "bullish_cannon", MinDays: 30, Detect: BullishCannon},
		{Name: "weak_to_strong", MinDays: 5, Detect: WeakToStrong},
		{Name: "four_edge", MinDays: 130, Detect: FourEdge},
	})
}

// NewRegistryWith builds a registry from an explicit config list.
func NewRegistryWith(configs []Config) *Registry {
	byName := make(map[string]Config, len(configs))
	for _, c := range configs {
		byName[c.Name] = c
	}
	return &Registry{configs: configs, byName: byName}
}

// Get looks up a detector config by name.
func (r *Registry) Get(name string) (Config, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns all registered feature names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// All returns the configs in registration order.
func (r *Registry) All() []Config {
	out := make([]Config, len(r.configs))
	copy(out, r.configs)
	return out
}

// upperShadowRatio returns (high - max(open, close)) / max(open, close)
// as a percentage for each bar.
func upperShadowRatio(s models.BarSeries) []float64 {
	out := make([]float64, s.Len())
	for i, b := range s {
		bodyTop := b.Open
		if b.Close > bodyTop {
			bodyTop = b.Close
		}
		out[i] = (b.High - bodyTop) / bodyTop * 100
	}
	return out
}

func noSignal() Result { return Result{} }

func signal(metrics map[string]float64) Result {
	return Result{Signal: true, Metrics: metrics}
}
