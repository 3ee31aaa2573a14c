package templates

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/labelkit/pkg/geometry"
)

// MongoOptions configures a MongoStore.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string // default "templates"
}

// MongoStore keeps templates in a MongoDB collection, one document each,
// keyed by the template ID in string form.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// mongoTemplate is the stored document shape. uuid.UUID would otherwise
// encode as a BSON array.
type mongoTemplate struct {
	ID        string                 `bson:"_id"`
	Name      string                 `bson:"name"`
	Geometry  geometry.PrintGeometry `bson:"geometry"`
	DPI       int                    `bson:"dpi"`
	ShowQR    bool                   `bson:"show_qr"`
	CreatedAt time.Time              `bson:"created_at"`
	UpdatedAt time.Time              `bson:"updated_at"`
}

// NewMongoStore connects, pings the server and ensures the name index.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Database == "" {
		opts.Database = "labelkit"
	}
	if opts.Collection == "" {
		opts.Collection = "templates"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create template index: %w", err)
	}
	return &MongoStore{client: client, coll: coll, now: time.Now}, nil
}

func (s *MongoStore) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	var doc mongoTemplate
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find template %s: %w", id, err)
	}
	t := doc.template()
	return &t, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Template, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var docs []mongoTemplate
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	out := make([]Template, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.template())
	}
	sortByName(out)
	return out, nil
}

func (s *MongoStore) Save(ctx context.Context, t *Template) error {
	if t.ID != uuid.Nil && t.CreatedAt.IsZero() {
		if prev, err := s.Get(ctx, t.ID); err == nil {
			t.CreatedAt = prev.CreatedAt
		}
	}
	if err := Prepare(t, s.now()); err != nil {
		return err
	}
	doc := fromTemplate(*t)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save template %s: %w", t.ID, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func fromTemplate(t Template) mongoTemplate {
	return mongoTemplate{
		ID:        t.ID.String(),
		Name:      t.Name,
		Geometry:  t.Geometry,
		DPI:       t.DPI,
		ShowQR:    t.ShowQR,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func (d mongoTemplate) template() Template {
	id, _ := uuid.Parse(d.ID)
	return Template{
		ID:        id,
		Name:      d.Name,
		Geometry:  d.Geometry,
		DPI:       d.DPI,
		ShowQR:    d.ShowQR,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

var _ Store = (*MongoStore)(nil)
