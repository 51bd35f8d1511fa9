package policy

// GetThreshold returns rule ruleID's numeric parameter key from cfg, or
// defaultValue when cfg is nil or does not set it.
func GetThreshold(ruleID, key string, defaultValue float64, cfg *PolicyConfig) float64 {
	if cfg == nil {
		return defaultValue
	}
	if v, ok := cfg.Rules[ruleID].Params[key]; ok {
		return v
	}
	return defaultValue
}
