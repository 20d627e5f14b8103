package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/wxauth/core/logger"
)

const (
	usersCollection    = "users"
	countersCollection = "identitycounters"
	userIDCounter      = "users.userId"

	// maxUpsertAttempts covers losing the insert race to a concurrent login.
	maxUpsertAttempts = 3
)

// MongoStore keeps users in MongoDB with a unique index on openid.
type MongoStore struct {
	users    *mongo.Collection
	counters *mongo.Collection
	logger   *slog.Logger
}

var _ Store = (*MongoStore)(nil)

// MongoOption configures a MongoStore.
type MongoOption func(*MongoStore)

func WithLogger(l *slog.Logger) MongoOption {
	return func(s *MongoStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMongoStore returns a store over db. Call EnsureIndexes once at start-up.
func NewMongoStore(db *mongo.Database, opts ...MongoOption) *MongoStore {
	s := &MongoStore{
		users:    db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes creates the unique openid and userId indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "openid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "create_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("user: create indexes: %w", err)
	}
	return nil
}

// Upsert refreshes an existing user in place, or allocates an ID and
// inserts a new one. A duplicate key on insert means another login created
// the user first; the update is then retried.
func (s *MongoStore) Upsert(ctx context.Context, u User) (User, error) {
	if u.OpenID == "" {
		return User{}, ErrEmptyOpenID
	}

	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		now := time.Now().UTC()

		updated, err := s.refresh(ctx, u, now)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, errors.Join(ErrUpsertFailed, err)
		}

		created, err := s.insert(ctx, u, now)
		if err == nil {
			s.logger.InfoContext(ctx, "user created", logger.UserID(fmt.Sprint(created.UserID)))
			return created, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return User{}, errors.Join(ErrUpsertFailed, err)
		}
		s.logger.DebugContext(ctx, "concurrent user insert, retrying", logger.RetryCount(attempt))
	}
	return User{}, fmt.Errorf("%w: gave up after %d attempts", ErrUpsertFailed, maxUpsertAttempts)
}

func (s *MongoStore) refresh(ctx context.Context, u User, now time.Time) (User, error) {
	set := bson.D{{Key: "update_at", Value: now}}
	for _, f := range []struct {
		key   string
		value any
		empty bool
	}{
		{"unionid", u.UnionID, u.UnionID == ""},
		{"nickname", u.Nickname, u.Nickname == ""},
		{"headimgurl", u.AvatarURL, u.AvatarURL == ""},
		{"sex", u.Sex, u.Sex == 0},
		{"language", u.Language, u.Language == ""},
		{"city", u.City, u.City == ""},
		{"province", u.Province, u.Province == ""},
		{"country", u.Country, u.Country == ""},
		{"privilege", u.Privilege, u.Privilege == nil},
	} {
		if !f.empty {
			set = append(set, bson.E{Key: f.key, Value: f.value})
		}
	}

	var out User
	err := s.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "openid", Value: u.OpenID}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	return out, err
}

func (s *MongoStore) insert(ctx context.Context, u User, now time.Time) (User, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return User{}, err
	}

	created := User{UserID: id, OpenID: u.OpenID, Role: u.Role, CreatedAt: now, UpdatedAt: now}
	merge(&created, u)
	normalize(&created)
	if _, err := s.users.InsertOne(ctx, created); err != nil {
		return User{}, err
	}
	return created, nil
}

// nextID atomically increments the counter document.
func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: userIDCounter}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("user: allocate id: %w", err)
	}
	return FirstUserID + counter.Seq - 1, nil
}

func (s *MongoStore) GetByID(ctx context.Context, userID int64) (User, error) {
	return s.findOne(ctx, bson.D{{Key: "userId", Value: userID}})
}

func (s *MongoStore) GetByOpenID(ctx context.Context, openID string) (User, error) {
	return s.findOne(ctx, bson.D{{Key: "openid", Value: openID}})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (User, error) {
	var u User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return User{}, ErrNotFound
	default:
		return User{}, fmt.Errorf("user: find: %w", err)
	}
}
