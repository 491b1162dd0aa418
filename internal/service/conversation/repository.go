package conversation

import (
	"chat-widget-backend/internal/database"
	"chat-widget-backend/internal/model"
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("conversation repository: not found")

// ListFilter narrows ListConversations. Zero values match everything.
type ListFilter struct {
	Status     model.ConversationStatus
	Mode       model.ConversationMode
	AssignedTo string
	Limit      int
}

func (f ListFilter) matches(c model.ConversationItem) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Mode != "" && c.Mode != f.Mode {
		return false
	}
	if f.AssignedTo != "" && c.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

type Repository interface {
	GetConversation(ctx context.Context, sessionID string) (model.ConversationItem, error)
	PutConversation(ctx context.Context, conversation model.ConversationItem) error
	// ListConversations returns the workspace's conversations, most recent activity first.
	ListConversations(ctx context.Context, workspaceID string, filter ListFilter) ([]model.ConversationItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	// ListMessages returns the latest limit messages in chronological order.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]model.MessageItem, error)
	DeleteMessages(ctx context.Context, sessionID string) (int, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetConversation(ctx context.Context, sessionID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"sessionId": database.AttrString(sessionID),
		},
		&conversation,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) PutConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) ListConversations(ctx context.Context, workspaceID string, filter ListFilter) ([]model.ConversationItem, error) {
	q := database.Query{
		Table:        model.ConversationsTable,
		Index:        model.ConversationsByWorkspace,
		KeyCondition: "workspaceId = :workspaceId",
		Values: map[string]types.AttributeValue{
			":workspaceId": database.AttrString(workspaceID),
		},
		Names:            map[string]string{},
		ScanIndexForward: aws.Bool(false),
	}

	var conds []string
	if filter.Status != "" {
		conds = append(conds, "#status = :status")
		q.Names["#status"] = "status"
		q.Values[":status"] = database.AttrString(string(filter.Status))
	}
	if filter.Mode != "" {
		conds = append(conds, "#mode = :mode")
		q.Names["#mode"] = "mode"
		q.Values[":mode"] = database.AttrString(string(filter.Mode))
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assignedTo = :assignedTo")
		q.Values[":assignedTo"] = database.AttrString(filter.AssignedTo)
	}
	// Dynamo applies Limit before the filter, so only cap unfiltered reads.
	if len(conds) > 0 {
		q.Filter = strings.Join(conds, " AND ")
	} else if filter.Limit > 0 {
		q.Limit = int32(filter.Limit)
	}

	items, err := r.db.Client.QueryItems(ctx, q)
	if err != nil {
		return nil, err
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	if filter.Limit > 0 && len(conversations) > filter.Limit {
		conversations = conversations[:filter.Limit]
	}
	return conversations, nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.MessageItem, error) {
	items, err := r.db.Client.QueryItems(ctx, database.Query{
		Table:        model.MessagesTable,
		KeyCondition: "sessionId = :sessionId",
		Values: map[string]types.AttributeValue{
			":sessionId": database.AttrString(sessionID),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            int32(limit),
	})
	if err != nil {
		return nil, err
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	// newest first from the query; callers want transcript order
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].MessageID < messages[j].MessageID
	})
	return messages, nil
}

func (r *DynamoRepository) DeleteMessages(ctx context.Context, sessionID string) (int, error) {
	items, err := r.db.Client.QueryItems(ctx, database.Query{
		Table:        model.MessagesTable,
		KeyCondition: "sessionId = :sessionId",
		Values: map[string]types.AttributeValue{
			":sessionId": database.AttrString(sessionID),
		},
	})
	if err != nil {
		return 0, err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			"sessionId": item["sessionId"],
			"messageId": item["messageId"],
		})
	}
	if err := r.db.Client.BatchDeleteItems(ctx, model.MessagesTable, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}
