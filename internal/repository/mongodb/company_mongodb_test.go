package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"companydir/internal/apperror"
	"companydir/internal/model"
	"companydir/internal/query"
	"companydir/internal/repository"
)

func regex(p string) primitive.Regex {
	return primitive.Regex{Pattern: p, Options: "i"}
}

func TestBuildFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		assert.Equal(t, bson.D{}, BuildFilter(query.Filter{}))
	})

	t.Run("per-field patterns are escaped and case-insensitive", func(t *testing.T) {
		got := BuildFilter(query.Filter{Name: "a.b", Location: "SF", Industry: "(tech)"})
		want := bson.D{
			{Key: "name", Value: regex(`a\.b`)},
			{Key: "location", Value: regex("SF")},
			{Key: "industry", Value: regex(`\(tech\)`)},
		}
		assert.Equal(t, want, got)
	})

	t.Run("search is an OR-group AND-ed with field filters", func(t *testing.T) {
		got := BuildFilter(query.Filter{Location: "boston", Search: "tech"})
		want := bson.D{
			{Key: "location", Value: regex("boston")},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "name", Value: regex("tech")}},
				bson.D{{Key: "location", Value: regex("tech")}},
				bson.D{{Key: "industry", Value: regex("tech")}},
				bson.D{{Key: "description", Value: regex("tech")}},
			}},
		}
		assert.Equal(t, want, got)
	})
}

func TestBuildFindOptions(t *testing.T) {
	q := query.Query{
		Sort:   query.Sort{Field: query.FieldEmployees, Order: query.Desc},
		Window: query.Window{Page: 3, Limit: 20},
	}
	opts := BuildFindOptions(q)

	assert.Equal(t, bson.D{{Key: "employees", Value: -1}, {Key: "_id", Value: 1}}, opts.Sort)
	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(40), *opts.Skip)
	assert.Equal(t, int64(20), *opts.Limit)

	asc := BuildFindOptions(query.Query{Sort: query.Sort{Field: query.FieldName, Order: query.Asc}, Window: query.Window{Page: 1, Limit: 10}})
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}, asc.Sort)
	assert.Equal(t, int64(0), *asc.Skip)
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestCompanyMongoDB_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes the window", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "TechCorp"},
			{Key: "location", Value: "SF"},
			{Key: "industry", Value: "Tech"},
			{Key: "employees", Value: 500},
			{Key: "founded", Value: 2010},
			{Key: "createdAt", Value: created},
			{Key: "updatedAt", Value: created},
		}))

		repo := NewCompanyMongoDB(mt.Coll)
		q := query.Query{
			Filter: query.Filter{Search: "tech"},
			Sort:   query.Sort{Field: query.FieldName, Order: query.Asc},
			Window: query.Window{Page: 1, Limit: 10},
		}
		got, err := repo.Find(context.Background(), q)

		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, id.Hex(), got[0].ID)
		assert.Equal(mt, "TechCorp", got[0].Name)
		assert.Equal(mt, 500, got[0].Employees)
		require.NotNil(mt, got[0].Founded)
		assert.Equal(mt, 2010, *got[0].Founded)
		assert.True(mt, created.Equal(got[0].CreatedAt))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "find", started.CommandName)
	})

	mt.Run("empty result is an empty slice", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		got, err := NewCompanyMongoDB(mt.Coll).Find(context.Background(), query.Query{
			Sort:   query.Sort{Field: query.FieldName},
			Window: query.Window{Page: 1, Limit: 10},
		})
		require.NoError(mt, err)
		assert.NotNil(mt, got)
		assert.Empty(mt, got)
	})

	mt.Run("command error is returned", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad query",
		}))

		_, err := NewCompanyMongoDB(mt.Coll).Find(context.Background(), query.Query{
			Sort:   query.Sort{Field: query.FieldName},
			Window: query.Window{Page: 1, Limit: 10},
		})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, apperror.ErrStoreUnavailable)
	})
}

func TestCompanyMongoDB_Count(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns n", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: 1},
			{Key: "n", Value: int32(15)},
		}))

		n, err := NewCompanyMongoDB(mt.Coll).Count(context.Background(), query.Filter{Location: "austin"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(15), n)
	})
}

func TestCompanyMongoDB_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "HealthCo"},
			{Key: "location", Value: "Boston"},
			{Key: "industry", Value: "Health"},
			{Key: "employees", Value: 1200},
		}))

		got, err := NewCompanyMongoDB(mt.Coll).FindByID(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, "HealthCo", got.Name)
		assert.Nil(mt, got.Founded)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := NewCompanyMongoDB(mt.Coll).FindByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, apperror.ErrNotFound)
	})

	mt.Run("malformed id never reaches the server", func(mt *mtest.T) {
		_, err := NewCompanyMongoDB(mt.Coll).FindByID(context.Background(), "nope")
		assert.ErrorIs(mt, err, apperror.ErrInvalidID)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestCompanyMongoDB_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns an ObjectID", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		now := time.Now().UTC()
		repo := NewCompanyMongoDB(mt.Coll)
		got, err := repo.Create(context.Background(), &model.Company{
			Name: "TechCorp", Location: "SF", Industry: "Tech", CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(mt, err)
		assert.True(mt, repo.ValidID(got.ID))
		assert.Equal(mt, "TechCorp", got.Name)
		assert.True(mt, now.Truncate(time.Millisecond).Equal(got.CreatedAt))
		assert.Equal(mt, "insert", mt.GetStartedEvent().CommandName)
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := NewCompanyMongoDB(mt.Coll).Create(context.Background(), &model.Company{Name: "x"})
		assert.Error(mt, err)
	})
}

func TestCompanyMongoDB_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("one index per sort field", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		names, err := NewCompanyMongoDB(mt.Coll).EnsureIndexes(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []string{
			"idx_companies_name",
			"idx_companies_location",
			"idx_companies_industry",
			"idx_companies_employees",
			"idx_companies_founded",
		}, names)
		assert.Equal(mt, "createIndexes", mt.GetStartedEvent().CommandName)
	})

	mt.Run("command error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Message: "not authorized",
			Name:    "Unauthorized",
		}))

		_, err := NewCompanyMongoDB(mt.Coll).EnsureIndexes(context.Background())
		assert.Error(mt, err)
	})
}

func TestCompanyMongoDB_Distinct(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sorted non-empty strings", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "values",
			Value: bson.A{"Boston", "Austin", ""},
		}))

		got, err := NewCompanyMongoDB(mt.Coll).Distinct(context.Background(), repository.FieldLocation)
		require.NoError(mt, err)
		assert.Equal(mt, []string{"Austin", "Boston"}, got)
	})

	mt.Run("unsupported field", func(mt *mtest.T) {
		_, err := NewCompanyMongoDB(mt.Coll).Distinct(context.Background(), "website")
		assert.Error(mt, err)
	})
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), apperror.ErrNotFound)
	assert.ErrorIs(t, translate(context.DeadlineExceeded), apperror.ErrStoreUnavailable)
	assert.ErrorIs(t, translate(fmt.Errorf("find: %w", context.DeadlineExceeded)), apperror.ErrStoreUnavailable)
	assert.ErrorIs(t, translate(mongo.ErrClientDisconnected), apperror.ErrStoreUnavailable)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestCompanyMongoDB_ValidID(t *testing.T) {
	repo := &CompanyMongoDB{}
	assert.True(t, repo.ValidID(primitive.NewObjectID().Hex()))
	assert.False(t, repo.ValidID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.False(t, repo.ValidID(""))
}
