package crawlcmd

// FeatureGates exposes runtime toggles consulted during registration.
type FeatureGates struct {
	// SchedulingEnabled should return true when periodic crawls are enabled.
	SchedulingEnabled func() bool
}

func (g FeatureGates) schedulingEnabled() bool {
	if g.SchedulingEnabled == nil {
		return true
	}
	return g.SchedulingEnabled()
}
