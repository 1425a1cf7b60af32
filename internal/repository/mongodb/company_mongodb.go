package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/repository"
)

// companyDocument is the persisted shape of a company in the collection.
type companyDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Location    string             `bson:"location"`
	Industry    string             `bson:"industry"`
	Description string             `bson:"description,omitempty"`
	Website     string             `bson:"website,omitempty"`
	Employees   int                `bson:"employees"`
	Founded     *int               `bson:"founded,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d companyDocument) toModel() model.Company {
	return model.Company{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Location:    d.Location,
		Industry:    d.Industry,
		Description: d.Description,
		Website:     d.Website,
		Employees:   d.Employees,
		Founded:     d.Founded,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// CompanyMongoDB is a MongoDB implementation of repository.CompanyRepository.
type CompanyMongoDB struct {
	coll *mongo.Collection
}

// NewCompanyMongoDB wraps the given collection. The collection's client is
// owned by the repository from here on and is disconnected by Close.
func NewCompanyMongoDB(coll *mongo.Collection) *CompanyMongoDB {
	return &CompanyMongoDB{coll: coll}
}

var _ repository.CompanyRepository = (*CompanyMongoDB)(nil)

// Create inserts a new document with a fresh ObjectID.
func (r *CompanyMongoDB) Create(ctx context.Context, c *model.Company) (*model.Company, error) {
	doc := companyDocument{
		ID:          primitive.NewObjectID(),
		Name:        c.Name,
		Location:    c.Location,
		Industry:    c.Industry,
		Description: c.Description,
		Website:     c.Website,
		Employees:   c.Employees,
		Founded:     c.Founded,
		// BSON dates carry millisecond precision.
		CreatedAt: c.CreatedAt.Truncate(time.Millisecond),
		UpdatedAt: c.UpdatedAt.Truncate(time.Millisecond),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, translate(err)
	}
	out := doc.toModel()
	return &out, nil
}

// FindByID fetches a single company by its hex ObjectID.
func (r *CompanyMongoDB) FindByID(ctx context.Context, id string) (*model.Company, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.ErrInvalidID
	}
	var doc companyDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	out := doc.toModel()
	return &out, nil
}

// Find runs a single sorted, skipped and limited find.
func (r *CompanyMongoDB) Find(ctx context.Context, q query.Query) ([]model.Company, error) {
	cur, err := r.coll.Find(ctx, BuildFilter(q.Filter), BuildFindOptions(q))
	if err != nil {
		return nil, translate(err)
	}
	var docs []companyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	items := make([]model.Company, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toModel())
	}
	return items, nil
}

// Count counts documents matching f.
func (r *CompanyMongoDB) Count(ctx context.Context, f query.Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, BuildFilter(f))
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Distinct returns the sorted distinct non-empty string values of field.
func (r *CompanyMongoDB) Distinct(ctx context.Context, field string) ([]string, error) {
	if field != repository.FieldLocation && field != repository.FieldIndustry {
		return nil, fmt.Errorf("distinct: unsupported field %q", field)
	}
	raw, err := r.coll.Distinct(ctx, field, bson.D{})
	if err != nil {
		return nil, translate(err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ValidID accepts 24-character hex ObjectIDs.
func (r *CompanyMongoDB) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *CompanyMongoDB) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return translate(err)
	}
	return nil
}

func (r *CompanyMongoDB) Close(ctx context.Context) error {
	if err := r.coll.Database().Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes backing filters and sort keys.
func (r *CompanyMongoDB) EnsureIndexes(ctx context.Context) ([]string, error) {
	models := make([]mongo.IndexModel, 0, len(query.SortFields))
	for _, f := range query.SortFields {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: string(f), Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_companies_" + string(f)),
		})
	}
	names, err := r.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return nil, translate(err)
	}
	return names, nil
}

// BuildFilter translates a query.Filter into a MongoDB filter document.
// Patterns are escaped so they match literally, case-insensitively.
func BuildFilter(f query.Filter) bson.D {
	filter := bson.D{}
	for _, clause := range []struct {
		field   string
		pattern string
	}{
		{"name", f.Name},
		{"location", f.Location},
		{"industry", f.Industry},
	} {
		if clause.pattern != "" {
			filter = append(filter, bson.E{Key: clause.field, Value: substring(clause.pattern)})
		}
	}
	if f.Search != "" {
		or := make(bson.A, 0, len(query.SearchFields))
		for _, field := range query.SearchFields {
			or = append(or, bson.D{{Key: field, Value: substring(f.Search)}})
		}
		filter = append(filter, bson.E{Key: "$or", Value: or})
	}
	return filter
}

// BuildFindOptions maps sort and window onto find options, with _id as tie-breaker.
func BuildFindOptions(q query.Query) *options.FindOptions {
	dir := 1
	if q.Sort.Descending() {
		dir = -1
	}
	return options.Find().
		SetSort(bson.D{{Key: string(q.Sort.Field), Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Window.Offset())).
		SetLimit(int64(q.Window.Limit))
}

func substring(pattern string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(pattern), Options: "i"}
}

func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperror.ErrNotFound
	case mongo.IsTimeout(err),
		mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", apperror.ErrStoreUnavailable, err)
	default:
		return err
	}
}
