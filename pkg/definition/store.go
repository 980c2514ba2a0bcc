package definition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a catalog document does not exist.
var ErrNotFound = errors.New("not found")

const (
	userCollection    = "user"
	managerCollection = "manager"
	agentCollection   = "agent"
	toolCollection    = "tool"
)

// StoreOptions configures the catalog store.
type StoreOptions struct {
	Client   *mongo.Client
	Database string
	Timeout  time.Duration
}

// Store reads and writes the catalog collections in MongoDB.
type Store struct {
	users    *mongo.Collection
	managers *mongo.Collection
	agents   *mongo.Collection
	tools    *mongo.Collection
	timeout  time.Duration
}

// NewStore builds a catalog store over the given client and database.
func NewStore(opts StoreOptions) *Store {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	db := opts.Client.Database(opts.Database)
	return &Store{
		users:    db.Collection(userCollection),
		managers: db.Collection(managerCollection),
		agents:   db.Collection(agentCollection),
		tools:    db.Collection(toolCollection),
		timeout:  opts.Timeout,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// FindUser loads the user's projects and settings by username.
func (s *Store) FindUser(ctx context.Context, username string) (*UserRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	projection := options.FindOne().SetProjection(bson.D{
		{Key: "projects", Value: 1},
		{Key: "settings", Value: 1},
		{Key: "_id", Value: 0},
	})

	var user UserRecord
	err := s.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}, projection).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb find user %q: %w", username, err)
	}
	user.Username = username
	return &user, nil
}

// ManagersForProjects loads the active managers of the given projects with
// their active agents and tools nested in, via a single aggregation.
func (s *Store) ManagersForProjects(ctx context.Context, projects []string) ([]ManagerRecord, error) {
	if len(projects) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	toolLookup := bson.D{
		{Key: "from", Value: toolCollection},
		{Key: "localField", Value: "tools"},
		{Key: "foreignField", Value: "tool_name"},
		{Key: "as", Value: "populated_tools"},
		{Key: "pipeline", Value: mongo.Pipeline{
			{{Key: "$match", Value: bson.D{{Key: "isActive", Value: true}}}},
			{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		}},
	}

	agentLookup := bson.D{
		{Key: "from", Value: agentCollection},
		{Key: "localField", Value: "agents"},
		{Key: "foreignField", Value: "agent_id"},
		{Key: "as", Value: "populated_agents"},
		{Key: "pipeline", Value: mongo.Pipeline{
			{{Key: "$match", Value: bson.D{{Key: "isActive", Value: true}}}},
			{{Key: "$lookup", Value: toolLookup}},
			{{Key: "$addFields", Value: bson.D{{Key: "tools", Value: "$populated_tools"}}}},
			{{Key: "$project", Value: bson.D{
				{Key: "populated_tools", Value: 0},
				{Key: "_id", Value: 0},
			}}},
		}},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "project_name", Value: bson.D{{Key: "$in", Value: projects}}},
			{Key: "isActive", Value: true},
		}}},
		{{Key: "$lookup", Value: agentLookup}},
		{{Key: "$addFields", Value: bson.D{{Key: "agents", Value: "$populated_agents"}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "populated_agents", Value: 0},
			{Key: "_id", Value: 0},
		}}},
	}

	cursor, err := s.managers.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate managers: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var records []ManagerRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("mongodb decode managers: %w", err)
	}
	return records, nil
}

// UpsertUser replaces the user document keyed by username.
func (s *Store) UpsertUser(ctx context.Context, user UserRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "username", Value: user.Username}}
	_, err := s.users.ReplaceOne(ctx, filter, user, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert user %q: %w", user.Username, err)
	}
	return nil
}

// UpsertManager replaces the manager document keyed by manager_id. The
// stored document keeps agent references as IDs.
func (s *Store) UpsertManager(ctx context.Context, m ManagerRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := bson.D{
		{Key: "manager_id", Value: m.ManagerID},
		{Key: "description", Value: m.Description},
		{Key: "isActive", Value: m.IsActive},
		{Key: "agents", Value: m.AgentIDs},
		{Key: "is_system_tool", Value: m.IsSystemTool},
		{Key: "project_name", Value: m.ProjectName},
	}
	filter := bson.D{{Key: "manager_id", Value: m.ManagerID}}
	_, err := s.managers.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert manager %q: %w", m.ManagerID, err)
	}
	return nil
}

// UpsertAgent replaces the agent document keyed by agent_id. The stored
// document keeps tool references as names.
func (s *Store) UpsertAgent(ctx context.Context, a AgentRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := bson.D{
		{Key: "agent_id", Value: a.AgentID},
		{Key: "description", Value: a.Description},
		{Key: "isActive", Value: a.IsActive},
		{Key: "tools", Value: a.ToolNames},
		{Key: "response_guideline", Value: a.ResponseGuideline},
	}
	filter := bson.D{{Key: "agent_id", Value: a.AgentID}}
	_, err := s.agents.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert agent %q: %w", a.AgentID, err)
	}
	return nil
}

// UpsertTool replaces the tool document keyed by tool_name.
func (s *Store) UpsertTool(ctx context.Context, t ToolRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "tool_name", Value: t.ToolName}}
	_, err := s.tools.ReplaceOne(ctx, filter, t, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert tool %q: %w", t.ToolName, err)
	}
	return nil
}
