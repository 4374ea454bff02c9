package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/mysterymsg/mystery/internal/models"
)

const accountsCollection = "accounts"

type accountDocument struct {
	ID                  string            `bson:"_id"`
	Username            string            `bson:"username"`
	Email               string            `bson:"email"`
	PasswordHash        string            `bson:"password_hash"`
	VerifyCode          string            `bson:"verify_code"`
	VerifyCodeExpiry    time.Time         `bson:"verify_code_expiry"`
	IsVerified          bool              `bson:"is_verified"`
	IsAcceptingMessages bool              `bson:"is_accepting_messages"`
	Messages            []messageDocument `bson:"messages"`
	CreatedAt           time.Time         `bson:"created_at"`
	UpdatedAt           time.Time         `bson:"updated_at"`
}

type messageDocument struct {
	ID        string    `bson:"_id"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d accountDocument) toModel() *models.Account {
	account := &models.Account{
		Username:            d.Username,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		VerifyCode:          d.VerifyCode,
		VerifyCodeExpiry:    d.VerifyCodeExpiry,
		IsVerified:          d.IsVerified,
		IsAcceptingMessages: d.IsAcceptingMessages,
	}
	account.ID = d.ID
	account.CreatedAt = d.CreatedAt
	account.UpdatedAt = d.UpdatedAt
	return account
}

var _ Store = (*MongoStore)(nil)

// MongoStore keeps each account as one document with its inbox embedded as an array.
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	now      func() time.Time
}

// NewMongoStore binds the accounts collection of database and ensures its unique indexes.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	if client == nil {
		return nil, errors.New("mongo store: client is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, errors.New("mongo store: database name is required")
	}

	s := &MongoStore{
		client:   client,
		accounts: client.Database(database).Collection(accountsCollection),
		now:      time.Now,
	}
	if err := s.ensureIndexes(ensureContext(ctx)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_verified", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo store: ensure indexes: %w", err)
	}
	return nil
}

func withoutInbox() bson.D {
	return bson.D{{Key: "messages", Value: 0}}
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: identifier}},
		bson.D{{Key: "email", Value: strings.ToLower(identifier)}},
	}}})
}

func (s *MongoStore) CreatePending(ctx context.Context, reg Registration) (*models.Account, error) {
	now := s.now().UTC()
	doc := accountDocument{
		ID:                  uuid.NewString(),
		Username:            reg.Username,
		Email:               reg.Email,
		PasswordHash:        reg.PasswordHash,
		VerifyCode:          reg.Code,
		VerifyCodeExpiry:    reg.CodeExpiry.UTC(),
		IsVerified:          false,
		IsAcceptingMessages: true,
		Messages:            []messageDocument{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := s.accounts.InsertOne(ensureContext(ctx), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("mongo store: insert account: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) OverwritePending(ctx context.Context, match Match, reg Registration) (*models.Account, error) {
	var filter bson.D
	switch match {
	case MatchEmail:
		filter = bson.D{{Key: "email", Value: reg.Email}, {Key: "is_verified", Value: false}}
	case MatchUsername:
		filter = bson.D{{Key: "username", Value: reg.Username}, {Key: "is_verified", Value: false}}
	default:
		return nil, fmt.Errorf("mongo store: unsupported match %q", match)
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "username", Value: reg.Username},
		{Key: "email", Value: reg.Email},
		{Key: "password_hash", Value: reg.PasswordHash},
		{Key: "verify_code", Value: reg.Code},
		{Key: "verify_code_expiry", Value: reg.CodeExpiry.UTC()},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutInbox())

	var doc accountDocument
	err := s.accounts.FindOneAndUpdate(ensureContext(ctx), filter, update, opts).Decode(&doc)
	switch {
	case err == nil:
		return doc.toModel(), nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrConflict
	default:
		return nil, fmt.Errorf("mongo store: overwrite pending account: %w", err)
	}
}

func (s *MongoStore) ReissueCode(ctx context.Context, accountID, code string, expiry time.Time) error {
	filter := bson.D{{Key: "_id", Value: accountID}, {Key: "is_verified", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "verify_code", Value: code},
		{Key: "verify_code_expiry", Value: expiry.UTC()},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}
	return s.updateOne(ctx, "reissue code", filter, update)
}

func (s *MongoStore) MarkVerified(ctx context.Context, accountID, code string) error {
	filter := bson.D{{Key: "_id", Value: accountID}, {Key: "verify_code", Value: code}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_verified", Value: true},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}
	return s.updateOne(ctx, "mark verified", filter, update)
}

func (s *MongoStore) SetAcceptingMessages(ctx context.Context, accountID string, accepting bool) (*models.Account, error) {
	filter := bson.D{{Key: "_id", Value: accountID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_accepting_messages", Value: accepting},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutInbox())

	var doc accountDocument
	err := s.accounts.FindOneAndUpdate(ensureContext(ctx), filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo store: set accepting messages: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, accountID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("mongo store: message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	// BSON dates keep millisecond precision.
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	msg.AccountID = accountID

	filter := bson.D{{Key: "_id", Value: accountID}}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "messages", Value: messageDocument{
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}}}}}
	return s.updateOne(ctx, "append message", filter, update)
}

func (s *MongoStore) ListMessages(ctx context.Context, accountID string) ([]models.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: accountID}}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$sort", Value: bson.D{
			{Key: "messages.created_at", Value: -1},
			{Key: "messages._id", Value: -1},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$messages"}}}},
	}

	ctx = ensureContext(ctx)
	cursor, err := s.accounts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo store: list messages: %w", err)
	}

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo store: decode messages: %w", err)
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, models.Message{
			ID:        doc.ID,
			AccountID: accountID,
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
		})
	}
	return messages, nil
}

func (s *MongoStore) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	filter := bson.D{{Key: "_id", Value: accountID}, {Key: "messages._id", Value: messageID}}
	update := bson.D{{Key: "$pull", Value: bson.D{
		{Key: "messages", Value: bson.D{{Key: "_id", Value: messageID}}},
	}}}
	return s.updateOne(ctx, "delete message", filter, update)
}

func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats Stats
		err   error
	)

	stats.VerifiedAccounts, err = s.accounts.CountDocuments(ctx, bson.D{{Key: "is_verified", Value: true}})
	if err != nil {
		return Stats{}, fmt.Errorf("mongo store: count verified accounts: %w", err)
	}
	stats.PendingAccounts, err = s.accounts.CountDocuments(ctx, bson.D{{Key: "is_verified", Value: false}})
	if err != nil {
		return Stats{}, fmt.Errorf("mongo store: count pending accounts: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{{Key: "count", Value: bson.D{
			{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$messages", bson.A{}}}}},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$count"}}},
		}}},
	}
	cursor, err := s.accounts.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, fmt.Errorf("mongo store: count messages: %w", err)
	}
	var totals []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &totals); err != nil {
		return Stats{}, fmt.Errorf("mongo store: decode message count: %w", err)
	}
	if len(totals) > 0 {
		stats.Messages = totals[0].Total
	}
	return stats, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ensureContext(ctx), readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ensureContext(ctx))
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*models.Account, error) {
	var doc accountDocument
	err := s.accounts.FindOne(ensureContext(ctx), filter, options.FindOne().SetProjection(withoutInbox())).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo store: load account: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) updateOne(ctx context.Context, op string, filter, update bson.D) error {
	result, err := s.accounts.UpdateOne(ensureContext(ctx), filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("mongo store: %s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
