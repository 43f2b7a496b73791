package impact

// Usage is the token count of one model call
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Default factors are coarse estimates for a hosted mid-size model: about
// 0.5 Wh per thousand tokens, and the carbon intensity of the French grid.
const (
	DefaultEnergyPerKTokens = 0.0005
	DefaultCarbonIntensity  = 0.052
)

// Factors convert token counts into energy (kWh) and GWP (kgCO2eq)
type Factors struct {
	// EnergyPerKTokens is kWh consumed per thousand tokens
	EnergyPerKTokens float64
	// CarbonIntensity is kgCO2eq emitted per kWh
	CarbonIntensity float64
}

// Estimator turns token usage into impact values.
// Values it cannot estimate are returned as nil.
type Estimator struct {
	factors Factors
}

func NewEstimator(factors Factors) *Estimator {
	return &Estimator{factors: factors}
}

// Estimate returns the energy and GWP of a call with the given usage
func (e *Estimator) Estimate(usage *Usage) (energy, gwp *float64) {
	if e == nil || usage == nil || e.factors.EnergyPerKTokens <= 0 {
		return nil, nil
	}

	tokens := usage.TotalTokens
	if tokens <= 0 {
		tokens = usage.InputTokens + usage.OutputTokens
	}
	if tokens <= 0 {
		return nil, nil
	}

	kwh := float64(tokens) / 1000 * e.factors.EnergyPerKTokens
	energy = &kwh
	if e.factors.CarbonIntensity > 0 {
		co2 := kwh * e.factors.CarbonIntensity
		gwp = &co2
	}
	return energy, gwp
}

// Record counts one call on t and adds whatever could be estimated.
func (e *Estimator) Record(t *Tracker, usage *Usage) {
	energy, gwp := e.Estimate(usage)
	t.RecordCall(gwp, energy)
}
