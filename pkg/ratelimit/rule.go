package ratelimit

// Rule is a resolved per-minute budget.
type Rule struct {
	RPM   int
	Burst int
}

// SystemDefault applies when neither the route nor the tenant sets a value.
var SystemDefault = Rule{RPM: 60, Burst: 60}

// Spec is a partially specified rule as it appears in tenant configuration.
// Nil fields fall back to the next level.
type Spec struct {
	RPM   *int `koanf:"rpm" yaml:"rpm,omitempty" json:"rpm,omitempty"`
	Burst *int `koanf:"burst" yaml:"burst,omitempty" json:"burst,omitempty"`
}

// Rules are one tenant's rate-limit settings.
type Rules struct {
	Default Spec            `koanf:"default" yaml:"default" json:"default"`
	Routes  map[string]Spec `koanf:"routes" yaml:"routes,omitempty" json:"routes,omitempty"`
}

// Resolve picks the rule for route field by field: the route's value, else
// the tenant default, else the system default. Burst without any explicit
// value follows the resolved rpm. Both are floored at 1.
func Resolve(route string, rules Rules) Rule {
	spec := rules.Routes[route]

	rpm := SystemDefault.RPM
	switch {
	case spec.RPM != nil:
		rpm = *spec.RPM
	case rules.Default.RPM != nil:
		rpm = *rules.Default.RPM
	}

	burst := rpm
	switch {
	case spec.Burst != nil:
		burst = *spec.Burst
	case rules.Default.Burst != nil:
		burst = *rules.Default.Burst
	}

	return Rule{RPM: max(rpm, 1), Burst: max(burst, 1)}
}

// capacity is the bucket size for r.
func (r Rule) capacity() int { return max(r.Burst, r.RPM) }

// perSecond is the refill rate for r.
func (r Rule) perSecond() float64 { return float64(r.RPM) / 60 }
