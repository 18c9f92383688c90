package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/heritage-repo/internal/domain"
)

var tracer = otel.Tracer("store")

// MongoStore keeps every collection in a mongo database, one mongo
// collection per collection tag.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) coll(c domain.Collection) *mongo.Collection {
	return s.db.Collection(string(c))
}

func (s *MongoStore) FindOne(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error {
	ctx, span := tracer.Start(ctx, "Store.FindOne")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)))

	err := s.coll(collection).FindOne(ctx, bson.M(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFoundError{Resource: string(collection)}
	}
	return errors.Wrapf(err, "findOne %s", collection)
}

func (s *MongoStore) Find(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error {
	ctx, span := tracer.Start(ctx, "Store.Find")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)))

	cur, err := s.coll(collection).Find(ctx, bson.M(filter), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return errors.Wrapf(err, "find %s", collection)
	}
	return errors.Wrapf(cur.All(ctx, out), "decode %s", collection)
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection domain.Collection, filter domain.Filter, update domain.Update, upsert bool) (domain.UpdateResult, error) {
	ctx, span := tracer.Start(ctx, "Store.UpdateOne")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(collection)))

	doc, err := buildUpdate(update)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if len(doc) == 0 {
		return domain.UpdateResult{}, errors.New("empty update")
	}

	res, err := s.coll(collection).UpdateOne(ctx, bson.M(filter), doc, options.UpdateOne().SetUpsert(upsert))
	if err != nil {
		return domain.UpdateResult{}, errors.Wrapf(err, "updateOne %s", collection)
	}

	return domain.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteOne")
	defer span.End()

	res, err := s.coll(collection).DeleteOne(ctx, bson.M(filter))
	if err != nil {
		return 0, errors.Wrapf(err, "deleteOne %s", collection)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteMany(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteMany")
	defer span.End()

	res, err := s.coll(collection).DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, errors.Wrapf(err, "deleteMany %s", collection)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the indexes the annotation and search queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[domain.Collection][]mongo.IndexModel{
		domain.CollectionAnnotation: {
			{Keys: bson.D{{Key: "target.source.relatedEntity", Value: 1}}},
			{Keys: bson.D{{Key: "target.source.relatedCompilation", Value: 1}}},
		},
		domain.CollectionEntity: {
			{Keys: bson.D{{Key: "__normalizedName", Value: 1}}},
			{Keys: bson.D{{Key: "relatedDigitalEntity._id", Value: 1}}},
		},
		domain.CollectionCompilation: {
			{Keys: bson.D{{Key: "__normalizedName", Value: 1}}},
		},
	}

	for c, models := range indexes {
		if _, err := s.coll(c).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "create indexes on %s", c)
		}
	}
	return nil
}

func buildUpdate(update domain.Update) (bson.D, error) {
	var doc bson.D

	if update.Set != nil {
		raw, err := bson.Marshal(update.Set)
		if err != nil {
			return nil, errors.Wrap(err, "encode update")
		}
		elems, err := bson.Raw(raw).Elements()
		if err != nil {
			return nil, errors.Wrap(err, "read update")
		}

		set := bson.D{}
		for _, elem := range elems {
			if elem.Key() == "_id" {
				continue
			}
			set = append(set, bson.E{Key: elem.Key(), Value: elem.Value()})
		}
		if len(set) > 0 {
			doc = append(doc, bson.E{Key: "$set", Value: set})
		}
	}

	if len(update.Unset) > 0 {
		unset := bson.D{}
		for _, path := range update.Unset {
			unset = append(unset, bson.E{Key: path, Value: ""})
		}
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}

	return doc, nil
}
