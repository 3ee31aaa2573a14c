package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one Redis without their keys colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "labelkit:shop-12:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	if prefix == "" {
		return inner
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

func (k *ScopedKeyer) RenderKey(itemsHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(itemsHash, opts)
}

func (k *ScopedKeyer) TemplateKey(id string) string {
	return k.prefix + k.inner.TemplateKey(id)
}
