package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"personachat/internal/database"
	"personachat/internal/models"
)

// maxListTurns caps a single ListTurns or ListConversations read
const maxListTurns = 200

// ErrConversationNotFound is returned by GetConversation for an unknown id
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore keeps conversation metadata and appends and reads turns.
// It carries no business logic; ownership decisions belong to the caller.
type ConversationStore interface {
	// EnsureConversation creates the conversation if its id is unused and returns the stored
	// record. An existing record keeps its owner; its UpdatedAt moves only when conv's
	// identity and creator match it.
	EnsureConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListConversations(ctx context.Context, identity string, limit int) ([]models.Conversation, error)
	AppendTurn(ctx context.Context, conversationID string, turn models.ConversationTurn) error
	ListTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error)
}

// prepareConversation validates conversation metadata and fills the timestamps
func prepareConversation(conv models.Conversation) (models.Conversation, error) {
	if strings.TrimSpace(conv.ID) == "" {
		return conv, fmt.Errorf("conversation id is required")
	}
	if conv.Identity == "" || conv.CreatorRef == "" {
		return conv, fmt.Errorf("conversation owner is required")
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	return conv, nil
}

// prepareTurn validates a turn and fills the id, conversation and timestamp
func prepareTurn(conversationID string, turn models.ConversationTurn) (models.ConversationTurn, error) {
	if strings.TrimSpace(conversationID) == "" {
		return turn, fmt.Errorf("conversation id is required")
	}
	if !turn.Role.Valid() {
		return turn, fmt.Errorf("invalid role %q", turn.Role)
	}
	turn.ConversationID = conversationID
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	return turn, nil
}

func clampListLimit(limit int) int {
	if limit <= 0 || limit > maxListTurns {
		return maxListTurns
	}
	return limit
}

// reverseTurns flips newest-first rows into creation order
func reverseTurns(turns []models.ConversationTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

// SQLConversationStore stores turns in MySQL or SQLite
type SQLConversationStore struct {
	db *database.DB
}

// NewSQLConversationStore creates a SQL-backed conversation store
func NewSQLConversationStore(db *database.DB) *SQLConversationStore {
	return &SQLConversationStore{db: db}
}

const selectConversation = `SELECT conversation_id, identity, creator_ref, title, created_at, updated_at FROM conversations`

func scanConversation(row interface{ Scan(...any) error }) (models.Conversation, error) {
	var (
		conv                 models.Conversation
		creatorRef           string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&conv.ID, &conv.Identity, &creatorRef, &conv.Title, &createdAt, &updatedAt); err != nil {
		return conv, err
	}
	conv.CreatorRef = models.CreatorCorpusRef(creatorRef)
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return conv, nil
}

// EnsureConversation inserts the conversation unless the id exists, then returns the stored row
func (s *SQLConversationStore) EnsureConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	conv, err := prepareConversation(conv)
	if err != nil {
		return conv, err
	}

	_, err = s.db.ExecContext(ctx,
		s.db.InsertIgnore()+` INTO conversations (conversation_id, identity, creator_ref, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Identity, string(conv.CreatorRef), conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return conv, fmt.Errorf("failed to insert conversation: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE conversation_id = ? AND identity = ? AND creator_ref = ?`,
		conv.UpdatedAt.UnixNano(), conv.ID, conv.Identity, string(conv.CreatorRef),
	)
	if err != nil {
		return conv, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return s.GetConversation(ctx, conv.ID)
}

// GetConversation returns the metadata of one conversation
func (s *SQLConversationStore) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, selectConversation+` WHERE conversation_id = ?`, conversationID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return conv, ErrConversationNotFound
	}
	if err != nil {
		return conv, fmt.Errorf("failed to read conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns an identity's conversations, most recently updated first
func (s *SQLConversationStore) ListConversations(ctx context.Context, identity string, limit int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectConversation+` WHERE identity = ? ORDER BY updated_at DESC, created_at DESC LIMIT ?`,
		identity, clampListLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return convs, nil
}

// AppendTurn inserts one turn
func (s *SQLConversationStore) AppendTurn(ctx context.Context, conversationID string, turn models.ConversationTurn) error {
	turn, err := prepareTurn(conversationID, turn)
	if err != nil {
		return err
	}

	var snippetCount sql.NullInt64
	if turn.RetrievalMeta != nil {
		snippetCount = sql.NullInt64{Int64: int64(turn.RetrievalMeta.SnippetCount), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (turn_id, conversation_id, role, content, snippet_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationID, string(turn.Role), turn.Content, snippetCount, turn.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// ListTurns returns the latest limit turns of a conversation in creation order
func (s *SQLConversationStore) ListTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, conversation_id, role, content, snippet_count, created_at
		 FROM conversation_turns
		 WHERE conversation_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		conversationID, clampListLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var (
			turn         models.ConversationTurn
			role         string
			snippetCount sql.NullInt64
			createdAt    int64
		)
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &role, &turn.Content, &snippetCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = models.Role(role)
		turn.CreatedAt = time.Unix(0, createdAt).UTC()
		if snippetCount.Valid {
			turn.RetrievalMeta = &models.RetrievalMeta{SnippetCount: int(snippetCount.Int64)}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	reverseTurns(turns)
	return turns, nil
}

// Ping checks the backing database
func (s *SQLConversationStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Name identifies the dependency in readiness reports
func (s *SQLConversationStore) Name() string {
	return "store"
}

// MongoConversationStore stores turns in a MongoDB collection
type MongoConversationStore struct {
	mongoDB *database.MongoDB
}

// NewMongoConversationStore creates a MongoDB-backed conversation store
func NewMongoConversationStore(mongoDB *database.MongoDB) *MongoConversationStore {
	return &MongoConversationStore{mongoDB: mongoDB}
}

// EnsureConversation upserts the conversation without overwriting an existing owner
func (s *MongoConversationStore) EnsureConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	conv, err := prepareConversation(conv)
	if err != nil {
		return conv, err
	}
	collection := s.mongoDB.Collection(database.CollectionConversations)

	_, err = collection.UpdateOne(ctx,
		bson.M{"conversationId": conv.ID},
		bson.M{"$setOnInsert": bson.M{
			"identity":   conv.Identity,
			"creatorRef": string(conv.CreatorRef),
			"title":      conv.Title,
			"createdAt":  conv.CreatedAt,
			"updatedAt":  conv.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	// A concurrent upsert of the same id loses on the unique index; the winner's row is read below
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return conv, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	_, err = collection.UpdateOne(ctx,
		bson.M{"conversationId": conv.ID, "identity": conv.Identity, "creatorRef": string(conv.CreatorRef)},
		bson.M{"$set": bson.M{"updatedAt": conv.UpdatedAt}},
	)
	if err != nil {
		return conv, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return s.GetConversation(ctx, conv.ID)
}

// GetConversation returns the metadata of one conversation
func (s *MongoConversationStore) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := s.mongoDB.Collection(database.CollectionConversations).
		FindOne(ctx, bson.M{"conversationId": conversationID}).
		Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return conv, ErrConversationNotFound
	}
	if err != nil {
		return conv, fmt.Errorf("failed to read conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns an identity's conversations, most recently updated first
func (s *MongoConversationStore) ListConversations(ctx context.Context, identity string, limit int) ([]models.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetLimit(int64(clampListLimit(limit)))

	cursor, err := s.mongoDB.Collection(database.CollectionConversations).
		Find(ctx, bson.M{"identity": identity}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer cursor.Close(ctx)

	convs := []models.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return convs, nil
}

// AppendTurn inserts one turn document
func (s *MongoConversationStore) AppendTurn(ctx context.Context, conversationID string, turn models.ConversationTurn) error {
	turn, err := prepareTurn(conversationID, turn)
	if err != nil {
		return err
	}
	if _, err := s.mongoDB.Collection(database.CollectionConversationTurns).InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// ListTurns returns the latest limit turns of a conversation in creation order
func (s *MongoConversationStore) ListTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(clampListLimit(limit)))

	cursor, err := s.mongoDB.Collection(database.CollectionConversationTurns).
		Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer cursor.Close(ctx)

	turns := []models.ConversationTurn{}
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	reverseTurns(turns)
	return turns, nil
}

// Ping checks the backing database
func (s *MongoConversationStore) Ping(ctx context.Context) error {
	return s.mongoDB.Ping(ctx)
}

// Name identifies the dependency in readiness reports
func (s *MongoConversationStore) Name() string {
	return "store"
}
