// Package templates stores named label layouts: a print geometry plus the
// resolution and QR preference it was designed for. Operators pick a
// template instead of typing dimensions for every print run.
//
// Backends:
//   - [MemoryStore] for tests and ephemeral servers
//   - [FileStore] for the CLI, one JSON file per template
//   - [MongoStore] for the shared HTTP service
package templates

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/geometry"
)

// Template is a saved label layout.
type Template struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Geometry  geometry.PrintGeometry `json:"geometry"`
	DPI       int                    `json:"dpi"`
	ShowQR    bool                   `json:"showQr"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Store persists templates.
type Store interface {
	// Get returns the template with id, or an error with code
	// TEMPLATE_NOT_FOUND.
	Get(ctx context.Context, id uuid.UUID) (*Template, error)

	// List returns all templates sorted by name.
	List(ctx context.Context) ([]Template, error)

	// Save creates or replaces t. A nil ID is replaced by a new random ID;
	// timestamps and geometry are filled in by [Prepare] before storing.
	Save(ctx context.Context, t *Template) error

	// Delete removes the template with id. Deleting a missing template
	// returns TEMPLATE_NOT_FOUND.
	Delete(ctx context.Context, id uuid.UUID) error

	Close() error
}

// Prepare validates t and fills the fields a store sets on save: a new ID
// when none is set, CreatedAt on first save, UpdatedAt always, a normalized
// geometry and the default DPI.
func Prepare(t *Template, now time.Time) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.Validation("template name is required")
	}
	if t.DPI == 0 {
		t.DPI = geometry.BaseDPI
	}
	if !geometry.IsSupportedDPI(t.DPI) {
		return errors.New(errors.ErrCodeInvalidDPI, "unsupported dpi %d (want one of %v)", t.DPI, geometry.SupportedDPI)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Geometry = t.Geometry.Normalize()
	return nil
}

// ParseID parses a template ID from user input.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, errors.Validation("invalid template id %q", s)
	}
	return id, nil
}

func notFound(id uuid.UUID) error {
	return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", id)
}

func sortByName(ts []Template) {
	slices.SortFunc(ts, func(a, b Template) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}
