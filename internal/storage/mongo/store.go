// Package mongo хранит каждую коллекцию документов в одноимённой коллекции MongoDB.
// Подписки построены на change streams и требуют replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/storage"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// Connect подключается к MongoDB и проверяет соединение ping-ом.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	defer logger.DeferLogDuration("mongo.Get "+collection, time.Now())()
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo.Get: %w", err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Create(ctx context.Context, collection, id string, v any) error {
	defer logger.DeferLogDuration("mongo.Create "+collection, time.Now())()
	doc, err := toBSON(id, v)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrExists
	}
	if err != nil {
		return fmt.Errorf("mongo.Create: %w", err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, v any) error {
	defer logger.DeferLogDuration("mongo.Set "+collection, time.Now())()
	doc, err := toBSON(id, v)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo.Set: %w", err)
	}
	return nil
}

// Update переводит изменения в $set / $unset / $addToSet / $pull одного UpdateOne,
// так что множества меняются атомарно на стороне сервера.
func (s *Store) Update(ctx context.Context, collection, id string, updates ...storage.Update) error {
	defer logger.DeferLogDuration("mongo.Update "+collection, time.Now())()
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, buildUpdate(updates))
	if err != nil {
		return fmt.Errorf("mongo.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateIf добавляет cond в фильтр UpdateOne. Если ничего не совпало,
// отдельный запрос различает отсутствующий документ и невыполненное условие.
func (s *Store) UpdateIf(ctx context.Context, collection, id string, cond []storage.Filter, updates ...storage.Update) error {
	defer logger.DeferLogDuration("mongo.UpdateIf "+collection, time.Now())()
	coll := s.db.Collection(collection)
	res, err := coll.UpdateOne(ctx, conditionFilter(id, cond), buildUpdate(updates))
	if err != nil {
		return fmt.Errorf("mongo.UpdateIf: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo.UpdateIf count: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrConditionFailed
}

func conditionFilter(id string, cond []storage.Filter) bson.M {
	f := buildFilter(cond)
	f["_id"] = id
	return f
}

func buildUpdate(updates []storage.Update) bson.M {
	set := bson.M{}
	unset := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	for _, u := range updates {
		switch u.Op {
		case storage.UpdateSet:
			set[u.Field] = u.Value
		case storage.UpdateUnset:
			unset[u.Field] = ""
		case storage.UpdateArrayUnion:
			each := bson.A{}
			if prev, ok := addToSet[u.Field].(bson.M); ok {
				each = prev["$each"].(bson.A)
			}
			addToSet[u.Field] = bson.M{"$each": append(each, u.Values...)}
		case storage.UpdateArrayRemove:
			in := bson.A{}
			if prev, ok := pull[u.Field].(bson.M); ok {
				in = prev["$in"].(bson.A)
			}
			pull[u.Field] = bson.M{"$in": append(in, u.Values...)}
		}
	}
	out := bson.M{}
	for op, fields := range map[string]bson.M{"$set": set, "$unset": unset, "$addToSet": addToSet, "$pull": pull} {
		if len(fields) > 0 {
			out[op] = fields
		}
	}
	return out
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	defer logger.DeferLogDuration("mongo.Delete "+collection, time.Now())()
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo.Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...storage.Filter) ([]storage.Document, error) {
	defer logger.DeferLogDuration("mongo.Query "+collection, time.Now())()
	cur, err := s.db.Collection(collection).Find(ctx, buildFilter(filters), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo.Query: %w", err)
	}
	defer cur.Close(ctx)

	var out []storage.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo.Query decode: %w", err)
		}
		doc := fromBSON(raw)
		if storage.Match(doc, filters) {
			out = append(out, doc)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo.Query cursor: %w", err)
	}
	return out, nil
}

// buildFilter: равенство по полю-массиву в MongoDB совпадает и с элементом массива,
// поэтому результат дополнительно проверяется storage.Match.
func buildFilter(filters []storage.Filter) bson.M {
	f := bson.M{}
	var and bson.A
	for _, flt := range filters {
		var cond bson.M
		switch flt.Op {
		case storage.OpEq, storage.OpArrayContains:
			cond = bson.M{flt.Field: flt.Value}
		case storage.OpIn:
			vs, _ := flt.Value.([]any)
			cond = bson.M{flt.Field: bson.M{"$in": bson.A(vs)}}
		default:
			continue
		}
		and = append(and, cond)
	}
	if len(and) > 0 {
		f["$and"] = and
	}
	return f
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters ...storage.Filter) (<-chan storage.Change, error) {
	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("mongo.Subscribe watch: %w", err)
	}
	snapshot, err := s.Query(ctx, collection, filters...)
	if err != nil {
		_ = stream.Close(context.Background())
		return nil, err
	}

	out := make(chan storage.Change)
	go func() {
		defer close(out)
		defer func() { _ = stream.Close(context.Background()) }()

		tracker := storage.NewTracker(filters)
		emit := func(id string, doc storage.Document) bool {
			ch, ok := tracker.Observe(id, doc)
			if !ok {
				return true
			}
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, doc := range snapshot {
			if !emit(doc.ID(), doc) {
				return
			}
		}
		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				logger.Errorf("mongo.Subscribe %s: decode: %v", collection, err)
				continue
			}
			var doc storage.Document
			if ev.OperationType != "delete" && ev.FullDocument != nil {
				doc = fromBSON(ev.FullDocument)
			}
			if !emit(ev.DocumentKey.ID, doc) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			logger.Errorf("mongo.Subscribe %s: %v", collection, err)
		}
	}()
	return out, nil
}

func toBSON(id string, v any) (bson.M, error) {
	doc, err := storage.Encode(v)
	if err != nil {
		return nil, err
	}
	out := bson.M(doc)
	out["_id"] = id
	return out, nil
}

// fromBSON приводит документ MongoDB к нормализованному виду storage.Document.
func fromBSON(raw bson.M) storage.Document {
	doc := make(storage.Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = normalizeBSON(v)
	}
	return doc
}

func normalizeBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalizeBSON(val)
		}
		return m
	case map[string]any:
		return normalizeBSON(bson.M(t))
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case bson.A:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalizeBSON(val)
		}
		return s
	case []any:
		return normalizeBSON(bson.A(t))
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	default:
		return storage.Normalize(v)
	}
}
