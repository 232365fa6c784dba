package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/enaema/budget-ledger/pkg/docstore"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store keeps ledger documents in a single MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Open connects with the stable server API v1 and pings the admin database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	store := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := store.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Infof("Connected to MongoDB collection %s.%s", cfg.Database, cfg.Collection)
	store.ensureDateIndex(ctx)
	return store, nil
}

// ensureDateIndex adds the unique day index. Collections that already hold
// duplicate days keep working without it.
func (s *Store) ensureDateIndex(ctx context.Context) {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("date_unique"),
	})
	if err != nil {
		log.Warnf("could not create unique date index: %v", err)
	}
}

func (s *Store) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	query, err := toBSON(filter)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	if err := s.collection.FindOne(ctx, query).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		err := fmt.Errorf("could not find document: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	return fromBSON(raw), nil
}

func (s *Store) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	query, err := toBSON(filter)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, f := range opts.Sort {
			direction := 1
			if f.Desc {
				direction = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: direction})
		}
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.collection.Find(ctx, query, findOpts)
	if err != nil {
		err := fmt.Errorf("could not query documents: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		err := fmt.Errorf("could not read documents: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func (s *Store) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	body := bson.M{}
	for k, v := range doc {
		if k != docstore.IDField {
			body[k] = v
		}
	}
	result, err := s.collection.InsertOne(ctx, body)
	if err != nil {
		err := fmt.Errorf("could not insert document: %w", classify(err))
		log.Error(err)
		return "", err
	}
	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(result.InsertedID), nil
}

func (s *Store) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (bool, error) {
	query, err := toBSON(filter)
	if err != nil {
		return false, err
	}
	fields := bson.M{}
	for k, v := range set {
		if k != docstore.IDField {
			fields[k] = v
		}
	}
	result, err := s.collection.UpdateOne(ctx, query, bson.M{"$set": fields})
	if err != nil {
		err := fmt.Errorf("could not update document: %w", classify(err))
		log.Error(err)
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (s *Store) DeleteOne(ctx context.Context, filter docstore.Filter) (bool, error) {
	query, err := toBSON(filter)
	if err != nil {
		return false, err
	}
	result, err := s.collection.DeleteOne(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not delete document: %w", classify(err))
		log.Error(err)
		return false, err
	}
	return result.DeletedCount == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	err := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	if err != nil {
		return fmt.Errorf("could not ping mongodb: %w", classify(err))
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSON(filter docstore.Filter) (bson.M, error) {
	query := bson.M{}
	for k, v := range filter {
		if k != docstore.IDField {
			query[k] = v
			continue
		}
		idString, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v", docstore.ErrInvalidID, v)
		}
		oid, err := bson.ObjectIDFromHex(idString)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", docstore.ErrInvalidID, idString)
		}
		query[k] = oid
	}
	return query, nil
}

func fromBSON(raw bson.M) docstore.Document {
	doc := docstore.Document(normalize(raw).(map[string]any))
	if oid, ok := raw[docstore.IDField].(bson.ObjectID); ok {
		doc[docstore.IDField] = oid.Hex()
	}
	return doc
}

// normalize converts driver value types into the plain shapes docstore.Document promises.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		return normalize([]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bson.Decimal128:
		return t.String()
	case bson.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

func classify(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", docstore.ErrDuplicate, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}
