package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const JournalsCollection = "journals"

// MongoJournalStore keeps journals in a single MongoDB collection with
// string ids.
type MongoJournalStore struct {
	coll *mongo.Collection
}

func NewMongoJournalStore(db *mongo.Database) *MongoJournalStore {
	return &MongoJournalStore{coll: db.Collection(JournalsCollection)}
}

// EnsureIndexes creates the owner listing and title search indexes.
func (s *MongoJournalStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("owner_created_at"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "title", Value: 1}},
			Options: options.Index().SetName("owner_title"),
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create journal indexes: %w", err)
	}
	return nil
}

func (s *MongoJournalStore) FindByID(ctx context.Context, id string) (*models.Journal, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoJournalStore) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Journal, error) {
	return s.findOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
}

func (s *MongoJournalStore) findOne(ctx context.Context, filter bson.M) (*models.Journal, error) {
	var j models.Journal
	if err := s.coll.FindOne(ctx, filter).Decode(&j); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find journal: %w", err)
	}
	fromStored(&j)
	return &j, nil
}

func (s *MongoJournalStore) FindByOwner(ctx context.Context, ownerID string, page models.PageRequest) (models.Page[models.Journal], error) {
	return s.findPage(ctx, bson.M{"owner_id": ownerID}, page)
}

func (s *MongoJournalStore) SearchByOwnerAndTitle(ctx context.Context, ownerID, pattern string, page models.PageRequest) (models.Page[models.Journal], error) {
	filter := bson.M{
		"owner_id": ownerID,
		"title":    bson.M{"$regex": pattern, "$options": "i"},
	}
	return s.findPage(ctx, filter, page)
}

func (s *MongoJournalStore) findPage(ctx context.Context, filter bson.M, page models.PageRequest) (models.Page[models.Journal], error) {
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("count journals: %w", err)
	}

	findOptions := options.Find().
		SetSort(mongoSort(page)).
		SetSkip(page.Offset()).
		SetLimit(int64(page.Size))

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("find journals: %w", err)
	}
	defer cursor.Close(ctx)

	var journals []models.Journal
	if err := cursor.All(ctx, &journals); err != nil {
		return models.Page[models.Journal]{}, fmt.Errorf("decode journals: %w", err)
	}
	for i := range journals {
		fromStored(&journals[i])
	}
	return models.NewPage(journals, page, total), nil
}

func (s *MongoJournalStore) Save(ctx context.Context, j *models.Journal) (*models.Journal, error) {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": j.ID}, j, opts); err != nil {
		return nil, fmt.Errorf("save journal: %w", err)
	}
	return j, nil
}

func (s *MongoJournalStore) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (int64, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("delete journal: %w", err)
	}
	return res.DeletedCount, nil
}

var mongoSortFields = map[string]string{
	models.SortByCreatedAt:  "created_at",
	models.SortByModifiedAt: "modified_at",
	models.SortByTitle:      "title",
}

func mongoSort(page models.PageRequest) bson.D {
	field, ok := mongoSortFields[page.SortField]
	if !ok {
		field = "created_at"
	}
	dir := 1
	if page.SortDesc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

// fromStored converts BSON container types inside metadata into plain Go
// maps and slices so callers can type-switch on map[string]any.
func fromStored(j *models.Journal) {
	if j.Metadata != nil {
		j.Metadata = plainMap(j.Metadata)
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.ModifiedAt = j.ModifiedAt.UTC()
	j.Normalize()
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case models.Metadata:
		return plainMap(t)
	case primitive.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		return plainSlice(t)
	case []any:
		return plainSlice(t)
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = plainValue(v)
	}
	return out
}
