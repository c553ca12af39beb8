// Package domain: chat.go defines the DTOs of the product chat route
// POST /v1/products/chat.
//
// Flow:
//  1. Caller sends {"message": "...", "historyText": "..."}
//  2. The BFA resolves the optional user identity from the bearer token
//  3. ProductFinder runs the discovery pipeline
//  4. The BFA answers {"conversationId", "reply", "products"}
package domain

// ChatProductsRequest is the body of POST /v1/products/chat.
type ChatProductsRequest struct {
	Message        string `json:"message"`
	HistoryText    string `json:"historyText,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatProductsResponse is what the BFA returns to the chat widget.
type ChatProductsResponse struct {
	ConversationID string           `json:"conversationId"`
	Reply          string           `json:"reply"`
	Products       []ProductSummary `json:"products"`
}

// AgentGenerateRequest is the payload sent to the HTTP generation agent
// (POST /v1/generate).
type AgentGenerateRequest struct {
	HistoryText    string       `json:"history_text,omitempty"`
	CandidatesText string       `json:"candidates_text"`
	UserMessage    string       `json:"user_message"`
	Options        ReplyOptions `json:"options"`
}

// AgentGenerateResponse is the agent answer.
type AgentGenerateResponse struct {
	Reply      string `json:"reply"`
	TokensUsed int    `json:"tokens_used"`
}

// ChatMessage is one persisted history entry.
type ChatMessage struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// Chat roles persisted in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
