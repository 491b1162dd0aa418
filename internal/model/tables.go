package model

import "fmt"

const (
	WorkspacesTable    = "Workspaces"
	AgentsTable        = "Agents"
	ConversationsTable = "Conversations"
	MessagesTable      = "Messages"
	NotificationsTable = "Notifications"
)

const (
	WorkspaceAPIKeyIndex     = "apiKey-index"
	ConversationsByWorkspace = "workspaceId-lastActivityAt-index"
	NotificationsByWorkspace = "workspaceId-createdAt-index"
)

const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanPro      = "pro"
	PlanPremium  = "premium"
	PlanBusiness = "business"
)

const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
	RoleAgent = "agent"
)

type Product struct {
	ID          string  `dynamodbav:"id"`
	Name        string  `dynamodbav:"name"`
	Description string  `dynamodbav:"description,omitempty"`
	Price       float64 `dynamodbav:"price"`
	ImageURL    string  `dynamodbav:"imageUrl,omitempty"`
	Link        string  `dynamodbav:"link,omitempty"`
	Active      bool    `dynamodbav:"active"`
	CreatedAt   string  `dynamodbav:"createdAt"`
}

type ProductCatalog struct {
	Products []Product `dynamodbav:"products"`
}

type FAQ struct {
	Question string `dynamodbav:"question"`
	Answer   string `dynamodbav:"answer"`
	Active   bool   `dynamodbav:"active"`
}

type KnowledgeBase struct {
	FAQs               []FAQ  `dynamodbav:"faqs"`
	CustomInstructions string `dynamodbav:"customInstructions,omitempty"`
}

type BankTransfer struct {
	Enabled       bool   `dynamodbav:"enabled"`
	BankName      string `dynamodbav:"bankName,omitempty"`
	AccountName   string `dynamodbav:"accountName,omitempty"`
	AccountNumber string `dynamodbav:"accountNumber,omitempty"`
}

type QRCode struct {
	Enabled     bool   `dynamodbav:"enabled"`
	ImageURL    string `dynamodbav:"imageUrl,omitempty"`
	PromptPayID string `dynamodbav:"promptPayId,omitempty"`
}

type PaymentSettings struct {
	Enabled      bool         `dynamodbav:"enabled"`
	BankTransfer BankTransfer `dynamodbav:"bankTransfer"`
	QRCode       QRCode       `dynamodbav:"qrCode"`
	Note         string       `dynamodbav:"note,omitempty"`
}

// Configured reports whether at least one payment method can be shown.
func (p PaymentSettings) Configured() bool {
	return p.Enabled && (p.BankTransfer.Enabled || p.QRCode.Enabled)
}

type Usage struct {
	Month           string `dynamodbav:"month"`
	MonthlyMessages int    `dynamodbav:"monthlyMessages"`
}

type WorkspaceItem struct {
	WorkspaceID     string          `dynamodbav:"workspaceId"`
	Name            string          `dynamodbav:"name"`
	OwnerID         string          `dynamodbav:"ownerId"`
	Plan            string          `dynamodbav:"plan"`
	APIKey          string          `dynamodbav:"apiKey"`
	Language        string          `dynamodbav:"language,omitempty"`
	Currency        string          `dynamodbav:"currency,omitempty"`
	ProductCatalog  ProductCatalog  `dynamodbav:"productCatalog"`
	KnowledgeBase   KnowledgeBase   `dynamodbav:"knowledgeBase"`
	PaymentSettings PaymentSettings `dynamodbav:"paymentSettings"`
	Usage           Usage           `dynamodbav:"usage"`
	CreatedAt       string          `dynamodbav:"createdAt"`
}

// CurrencyLabel falls back to Thai baht.
func (w WorkspaceItem) CurrencyLabel() string {
	if w.Currency == "" {
		return "THB"
	}
	return w.Currency
}

type AgentItem struct {
	PK          string `dynamodbav:"pk"`
	WorkspaceID string `dynamodbav:"workspaceId"`
	UserID      string `dynamodbav:"userId"`
	Email       string `dynamodbav:"email"`
	Name        string `dynamodbav:"name"`
	Role        string `dynamodbav:"role"`
	Active      bool   `dynamodbav:"active"`
	CreatedAt   string `dynamodbav:"createdAt"`
}

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

const NotificationTypeNewOrder = "new_order"

type NotificationItem struct {
	NotificationID string               `dynamodbav:"notificationId"`
	WorkspaceID    string               `dynamodbav:"workspaceId"`
	RecipientID    string               `dynamodbav:"recipientId,omitempty"`
	SessionID      string               `dynamodbav:"sessionId,omitempty"`
	Type           string               `dynamodbav:"type"`
	Title          string               `dynamodbav:"title"`
	Message        string               `dynamodbav:"message"`
	Priority       NotificationPriority `dynamodbav:"priority"`
	Read           bool                 `dynamodbav:"read"`
	CreatedAt      string               `dynamodbav:"createdAt"`
}

func AgentPK(workspaceID, userID string) string {
	return fmt.Sprintf("%s#%s", workspaceID, userID)
}
