package db

import (
	"context"
	"errors"
	"time"

	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionLifetime bounds how long a session record maps a thread to an
// issue; Mongo's TTL monitor removes it afterwards.
const SessionLifetime = 30 * 24 * time.Hour

// ErrNoSession is returned when a thread has no persisted session.
var ErrNoSession = errors.New("no session for thread")

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	Users    *mongo.Collection
	Chats    *mongo.Collection
	Sessions *mongo.Collection

	ChatReposCache *cache.Cache[int64, []models.RepoLink]
}

func Connect(cfg *config.Config) (*DB, error) {
	clientOpts := options.Client().ApplyURI(cfg.MongoDBURI)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	database := client.Database(cfg.DatabaseName)

	d := &DB{
		Client:         client,
		Database:       database,
		Users:          database.Collection("users"),
		Chats:          database.Collection("chats"),
		Sessions:       database.Collection("sessions"),
		ChatReposCache: cache.New[int64, []models.RepoLink](),
	}

	if err := d.createIndexes(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *DB) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := d.Sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return err
	}

	_, err = d.Sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}},
	})
	return err
}

// --- sessions ---

// GetSession looks up the live session of a thread; ErrNoSession when the
// thread is not being monitored.
func (d *DB) GetSession(ctx context.Context, key string) (*models.Session, error) {
	var sess models.Session
	err := d.Sessions.FindOne(ctx, bson.M{"_id": key}).Decode(&sess)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return &sess, nil
}

func (d *DB) PutSession(ctx context.Context, sess *models.Session) error {
	opts := options.UpdateOne().SetUpsert(true)
	_, err := d.Sessions.UpdateOne(ctx, bson.M{"_id": sess.Key}, bson.M{"$set": sess}, opts)
	return err
}

func (d *DB) DeleteSession(ctx context.Context, key string) error {
	_, err := d.Sessions.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

// ListSessions returns every persisted session, used to resume monitoring
// after a restart.
func (d *DB) ListSessions(ctx context.Context) ([]models.Session, error) {
	cursor, err := d.Sessions.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListChatSessions returns the sessions belonging to one chat.
func (d *DB) ListChatSessions(ctx context.Context, chatID int64) ([]models.Session, error) {
	cursor, err := d.Sessions.Find(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// --- users ---

func (d *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := d.Users.FindOne(ctx, bson.M{"_id": telegramID}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) UpsertUser(ctx context.Context, user *models.User) error {
	opts := options.UpdateOne().SetUpsert(true)
	_, err := d.Users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": user}, opts)
	return err
}

func (d *DB) ClearUserToken(ctx context.Context, userID int64) error {
	update := bson.M{"$set": bson.M{"encrypted_token": ""}}
	_, err := d.Users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	return err
}

// --- chats ---

func (d *DB) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	var chat models.Chat
	err := d.Chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (d *DB) UpsertChat(ctx context.Context, chat *models.Chat) error {
	opts := options.UpdateOne().SetUpsert(true)
	update := bson.M{
		"$set": bson.M{
			"title":     chat.Title,
			"chat_type": chat.ChatType,
		},
	}
	_, err := d.Chats.UpdateOne(ctx, bson.M{"_id": chat.ID}, update, opts)
	return err
}

// AddRepoLink links a repository to a chat, replacing a previous link to the
// same repository
func (d *DB) AddRepoLink(ctx context.Context, chatID int64, link models.RepoLink) error {
	filter := bson.M{"_id": chatID}
	_, _ = d.Chats.UpdateOne(ctx, filter, bson.M{
		"$pull": bson.M{"links": bson.M{"repo_full_name": link.RepoFullName}},
	})

	opts := options.UpdateOne().SetUpsert(true)
	_, err := d.Chats.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"links": link}}, opts)

	d.ChatReposCache.Delete(chatID)
	return err
}

// RemoveRepoLink unlinks a repository from a chat
func (d *DB) RemoveRepoLink(ctx context.Context, chatID int64, repoFullName string) error {
	filter := bson.M{"_id": chatID}
	update := bson.M{
		"$pull": bson.M{"links": bson.M{"repo_full_name": repoFullName}},
	}
	_, err := d.Chats.UpdateOne(ctx, filter, update)

	d.ChatReposCache.Delete(chatID)
	return err
}

// GetChatLinks returns all repository links for a chat
func (d *DB) GetChatLinks(ctx context.Context, chatID int64) ([]models.RepoLink, error) {
	if cached, ok := d.ChatReposCache.Get(chatID); ok {
		return cached, nil
	}

	chat, err := d.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []models.RepoLink{}, nil
		}
		return nil, err
	}

	d.ChatReposCache.Set(chatID, chat.Links, 30*time.Minute)
	return chat.Links, nil
}

// GetRepoLink returns a specific repository link for a chat
func (d *DB) GetRepoLink(ctx context.Context, chatID int64, repoFullName string) (*models.RepoLink, error) {
	links, err := d.GetChatLinks(ctx, chatID)
	if err != nil {
		return nil, err
	}

	for _, link := range links {
		if link.RepoFullName == repoFullName {
			return &link, nil
		}
	}

	return nil, errors.New("link not found")
}
