// Package cache stores rendered label artifacts so repeated renders of the
// same item list and layout skip the emitter.
//
// Three backends implement [Cache]:
//
//   - [FileCache] for the CLI, one JSON file per entry under the user cache dir
//   - [RedisCache] for the HTTP service, shared between replicas
//   - [NullCache] when caching is disabled
//
// Keys come from a [Keyer] so the same inputs map to the same entry in every
// backend.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss
	// (hit == false), not an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Entry lifetimes. Rendered labels depend only on their inputs, so they can
// live long; previews are cheap and churn with editor sessions.
const (
	TTLRender  = 7 * 24 * time.Hour
	TTLPreview = 24 * time.Hour
)

// RenderKeyOpts are the render inputs that change the output bytes.
type RenderKeyOpts struct {
	Geometry geometry.PrintGeometry
	DPI      int
	ShowQR   bool
	Format   string
}

// Keyer derives cache keys.
type Keyer interface {
	// RenderKey identifies one rendered artifact of an item list.
	RenderKey(itemsHash string, opts RenderKeyOpts) string
	// TemplateKey identifies a cached template lookup.
	TemplateKey(id string) string
}

// DefaultKeyer produces "render:<sha256>" and "template:<id>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

func (DefaultKeyer) RenderKey(itemsHash string, opts RenderKeyOpts) string {
	return hashKey("render", itemsHash, opts)
}

func (DefaultKeyer) TemplateKey(id string) string {
	return "template:" + id
}
