package model

type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusWaiting   ConversationStatus = "waiting"
	ConversationStatusResolved  ConversationStatus = "resolved"
	ConversationStatusAbandoned ConversationStatus = "abandoned"
)

// ConversationMode says who may answer the customer.
type ConversationMode string

const (
	ConversationModeBot    ConversationMode = "bot"
	ConversationModeHuman  ConversationMode = "human"
	ConversationModeHybrid ConversationMode = "hybrid"
)

// BotMode only matters while the conversation is in bot mode.
type BotMode string

const (
	BotModeActive  BotMode = "active"
	BotModePassive BotMode = "passive"
)

type TimelineEntry struct {
	Event       string `dynamodbav:"event" json:"event"`
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Actor       string `dynamodbav:"actor" json:"actor"`
	Timestamp   string `dynamodbav:"timestamp" json:"timestamp"`
}

type Note struct {
	Author    string `dynamodbav:"author" json:"author"`
	Body      string `dynamodbav:"body" json:"body"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
}

type ConversationItem struct {
	SessionID      string             `dynamodbav:"sessionId" json:"sessionId"`
	WorkspaceID    string             `dynamodbav:"workspaceId" json:"workspaceId"`
	Customer       map[string]string  `dynamodbav:"customer,omitempty" json:"customer,omitempty"`
	OriginURL      string             `dynamodbav:"originUrl,omitempty" json:"originUrl,omitempty"`
	Status         ConversationStatus `dynamodbav:"status" json:"status"`
	Mode           ConversationMode   `dynamodbav:"mode" json:"mode"`
	BotMode        BotMode            `dynamodbav:"botMode" json:"botMode"`
	AssignedTo     string             `dynamodbav:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	BotPaused      bool               `dynamodbav:"botPaused" json:"botPaused"`
	Timeline       []TimelineEntry    `dynamodbav:"timeline" json:"timeline"`
	Notes          []Note             `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	MessageCount   int                `dynamodbav:"messageCount" json:"messageCount"`
	LastActivityAt string             `dynamodbav:"lastActivityAt" json:"lastActivityAt"`
	CreatedAt      string             `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt      string             `dynamodbav:"updatedAt" json:"updatedAt"`
}

type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleAI     MessageRole = "ai"
	MessageRoleHuman  MessageRole = "human"
	MessageRoleSystem MessageRole = "system"
)

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeCard MessageType = "card"
)

const (
	ProviderSystem       = "system"
	ModelSystemCatalog   = "system-catalog"
	ModelSystemPayment   = "system-payment"
	ModelSystemLifecycle = "system-lifecycle"
)

type ProductCard struct {
	ProductID   string `dynamodbav:"productId" json:"productId"`
	Title       string `dynamodbav:"title" json:"title"`
	Description string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Price       string `dynamodbav:"price" json:"price"`
	Currency    string `dynamodbav:"currency" json:"currency"`
	ImageURL    string `dynamodbav:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Link        string `dynamodbav:"link,omitempty" json:"link,omitempty"`
}

type MessageMetadata struct {
	ResponseTimeMs int64  `dynamodbav:"responseTimeMs,omitempty" json:"responseTimeMs,omitempty"`
	Error          string `dynamodbav:"error,omitempty" json:"error,omitempty"`
	Interceptor    string `dynamodbav:"interceptor,omitempty" json:"interceptor,omitempty"`
}

// MessageItem is immutable once written. MessageID is a ULID, so the
// sort key order is creation order.
type MessageItem struct {
	SessionID      string            `dynamodbav:"sessionId" json:"sessionId"`
	MessageID      string            `dynamodbav:"messageId" json:"messageId"`
	WorkspaceID    string            `dynamodbav:"workspaceId" json:"workspaceId"`
	Role           MessageRole       `dynamodbav:"role" json:"role"`
	Content        string            `dynamodbav:"content" json:"content"`
	Type           MessageType       `dynamodbav:"type" json:"type"`
	Provider       string            `dynamodbav:"provider,omitempty" json:"provider,omitempty"`
	Model          string            `dynamodbav:"model,omitempty" json:"model,omitempty"`
	StructuredData *ProductCard      `dynamodbav:"structuredData,omitempty" json:"structuredData,omitempty"`
	Metadata       MessageMetadata   `dynamodbav:"metadata" json:"metadata"`
	AuthorID       string            `dynamodbav:"authorId,omitempty" json:"authorId,omitempty"`
	PageContext    map[string]string `dynamodbav:"pageContext,omitempty" json:"pageContext,omitempty"`
	CreatedAt      string            `dynamodbav:"createdAt" json:"createdAt"`
}
