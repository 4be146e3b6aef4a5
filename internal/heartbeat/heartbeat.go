// Package heartbeat is a minimal client for the heartbeat.chat REST API: user
// lookup, direct messages and channel/category management. Only the surface the
// matchmaking assistant needs is covered.
package heartbeat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.heartbeat.chat"
	userAgent = "sophi-matchmaker"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// User is a heartbeat.chat member. Only the fields the assistant consumes are
// decoded.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DirectMessage is one message of a direct-message thread.
type DirectMessage struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	SenderUserID string `json:"senderUserID"`
}

// ChannelCategory groups channels in the heartbeat.chat sidebar.
type ChannelCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetUser fetches one user by identifier.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v0/users/%s", c.APIURL, userID), &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

// RecentMessages returns the direct-message thread content, oldest first as the
// API delivers it.
func (c *Client) RecentMessages(ctx context.Context, chatID string) ([]DirectMessage, error) {
	var messages []DirectMessage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v0/directMessages/%s", c.APIURL, chatID), &messages); err != nil {
		return nil, fmt.Errorf("get messages for chat %s: %w", chatID, err)
	}
	return messages, nil
}

// SendDirectMessage delivers text from one user identity to another. The
// platform renders rich text, so the payload is wrapped in a paragraph tag.
func (c *Client) SendDirectMessage(ctx context.Context, toUserID, fromUserID, text string) error {
	payload := map[string]string{
		"from": fromUserID,
		"to":   toUserID,
		"text": formatText(text),
	}
	if err := c.putJSON(ctx, c.APIURL+"/v0/directMessages", payload, nil); err != nil {
		return fmt.Errorf("send direct message to %s: %w", toUserID, err)
	}
	return nil
}

// FindChannelCategory looks a category up by name. Absence is not an error: the
// returned id is empty when no category carries the name.
func (c *Client) FindChannelCategory(ctx context.Context, name string) (string, error) {
	var categories []ChannelCategory
	if err := c.getJSON(ctx, c.APIURL+"/v0/channelCategories", &categories); err != nil {
		return "", fmt.Errorf("list channel categories: %w", err)
	}

	for _, category := range categories {
		if category.Name == name {
			return category.ID, nil
		}
	}

	return "", nil
}

// CreateChannelCategory creates a category and returns its id.
func (c *Client) CreateChannelCategory(ctx context.Context, name string) (string, error) {
	var created ChannelCategory
	if err := c.putJSON(ctx, c.APIURL+"/v0/channelCategories", map[string]string{"name": name}, &created); err != nil {
		return "", fmt.Errorf("create channel category %q: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create channel category %q: api returned no id", name)
	}
	return created.ID, nil
}

// EnsureChannelCategory returns the id of the named category, creating it when
// absent. Lookup-then-create keeps the operation idempotent.
func (c *Client) EnsureChannelCategory(ctx context.Context, name string) (string, error) {
	id, err := c.FindChannelCategory(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return c.CreateChannelCategory(ctx, name)
}

// CreateChatChannel creates a private chat channel in the given category and
// invites the listed member emails.
func (c *Client) CreateChatChannel(ctx context.Context, categoryID, name, description string, invitedEmails []string) error {
	payload := map[string]any{
		"isPrivate":         true,
		"channelCategoryID": categoryID,
		"name":              name,
		"description":       description,
		"invitedUsers":      invitedEmails,
		"channelType":       "CHAT",
	}
	if err := c.putJSON(ctx, c.APIURL+"/v0/channels", payload, nil); err != nil {
		return fmt.Errorf("create chat channel %q: %w", name, err)
	}

	c.logger.Info("chat channel created",
		zap.String("channel_name", name),
		zap.String("category_id", categoryID),
		zap.Int("invited", len(invitedEmails)),
	)

	return nil
}

func formatText(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<p>") {
		return text
	}
	return "<p>" + text + "</p>"
}
