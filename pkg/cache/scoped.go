package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several servers or
// tenants can share one Redis database:
//
//	keyer := cache.NewScopedKeyer(nil, "hwc:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the DefaultKeyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ReportKey implements Keyer.
func (k *ScopedKeyer) ReportKey(scenarioHash string, opts ReportKeyOpts) string {
	return k.prefix + k.inner.ReportKey(scenarioHash, opts)
}

// RenderKey implements Keyer.
func (k *ScopedKeyer) RenderKey(reportHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(reportHash, opts)
}
