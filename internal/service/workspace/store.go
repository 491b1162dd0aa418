package workspace

import (
	"chat-widget-backend/internal/database"
	"chat-widget-backend/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("workspace store: not found")

// Store is the read-mostly view of workspaces the chat core consumes.
type Store interface {
	GetWorkspace(ctx context.Context, workspaceID string) (model.WorkspaceItem, error)
	GetWorkspaceByAPIKey(ctx context.Context, apiKey string) (model.WorkspaceItem, error)
	GetAgent(ctx context.Context, workspaceID, userID string) (model.AgentItem, error)
	IncrementMessageUsage(ctx context.Context, workspaceID string, now time.Time) error
}

// CanManage reports whether userID may act on the workspace's conversations.
func CanManage(ctx context.Context, store Store, ws model.WorkspaceItem, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if ws.OwnerID == userID {
		return true, nil
	}
	agent, err := store.GetAgent(ctx, ws.WorkspaceID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return agent.Active, nil
}

type DynamoStore struct {
	db *database.Database
}

func NewDynamoStore(db *database.Database) *DynamoStore {
	return &DynamoStore{db: db}
}

func (s *DynamoStore) GetWorkspace(ctx context.Context, workspaceID string) (model.WorkspaceItem, error) {
	var ws model.WorkspaceItem
	err := s.db.Client.GetItem(
		ctx,
		model.WorkspacesTable,
		map[string]types.AttributeValue{
			"workspaceId": database.AttrString(workspaceID),
		},
		&ws,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.WorkspaceItem{}, ErrNotFound
		}
		return model.WorkspaceItem{}, err
	}
	return ws, nil
}

func (s *DynamoStore) GetWorkspaceByAPIKey(ctx context.Context, apiKey string) (model.WorkspaceItem, error) {
	items, err := s.db.Client.QueryItems(ctx, database.Query{
		Table:        model.WorkspacesTable,
		Index:        model.WorkspaceAPIKeyIndex,
		KeyCondition: "apiKey = :apiKey",
		Values: map[string]types.AttributeValue{
			":apiKey": database.AttrString(apiKey),
		},
		Limit: 1,
	})
	if err != nil {
		return model.WorkspaceItem{}, err
	}
	if len(items) == 0 {
		return model.WorkspaceItem{}, ErrNotFound
	}

	var ws model.WorkspaceItem
	if err := attributevalue.UnmarshalMap(items[0], &ws); err != nil {
		return model.WorkspaceItem{}, fmt.Errorf("unmarshal workspace: %w", err)
	}
	// The index may project a subset of attributes.
	return s.GetWorkspace(ctx, ws.WorkspaceID)
}

func (s *DynamoStore) GetAgent(ctx context.Context, workspaceID, userID string) (model.AgentItem, error) {
	var agent model.AgentItem
	err := s.db.Client.GetItem(
		ctx,
		model.AgentsTable,
		map[string]types.AttributeValue{
			"pk": database.AttrString(model.AgentPK(workspaceID, userID)),
		},
		&agent,
	)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.AgentItem{}, ErrNotFound
		}
		return model.AgentItem{}, err
	}
	return agent, nil
}

// IncrementMessageUsage bumps the monthly counter, starting over when the
// calendar month changed since the last message.
func (s *DynamoStore) IncrementMessageUsage(ctx context.Context, workspaceID string, now time.Time) error {
	ws, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}

	month := now.UTC().Format("2006-01")
	key := map[string]types.AttributeValue{"workspaceId": database.AttrString(workspaceID)}
	names := map[string]string{"#usage": "usage", "#month": "month", "#count": "monthlyMessages"}

	if ws.Usage.Month != month {
		return s.db.Client.UpdateItem(ctx, model.WorkspacesTable, key,
			"SET #usage = :usage",
			map[string]types.AttributeValue{
				":usage": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"month":           database.AttrString(month),
					"monthlyMessages": database.AttrNumber(1),
				}},
			},
			map[string]string{"#usage": "usage"},
			nil,
		)
	}

	return s.db.Client.UpdateItem(ctx, model.WorkspacesTable, key,
		"SET #usage.#count = if_not_exists(#usage.#count, :zero) + :one, #usage.#month = :month",
		map[string]types.AttributeValue{
			":zero":  database.AttrNumber(0),
			":one":   database.AttrNumber(1),
			":month": database.AttrString(month),
		},
		names,
		nil,
	)
}
