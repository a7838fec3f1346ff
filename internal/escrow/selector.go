package escrow

// SelectProvider picks the adapter for a new escrow. An explicit registered
// preference always wins; elevated risk prefers the high-risk provider;
// otherwise the default is used.
func SelectProvider(reg *Registry, risk RiskLevel, preference string) (Provider, error) {
	if preference != "" {
		if p, ok := reg.Get(preference); ok {
			return p, nil
		}
	}
	if risk.Elevated() {
		if p, ok := reg.HighRisk(); ok {
			return p, nil
		}
	}
	if p, ok := reg.Default(); ok {
		return p, nil
	}
	return nil, ProviderUnavailable("select provider", "", "no default escrow provider registered")
}
