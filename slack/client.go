/*
Package slack is the thin outbound boundary to the chat platform: message
dispatch (per-workspace token or reply webhook), user and channel lookups,
and the Block Kit rendering of the approval prompt.

It implements vacation.Messenger, vacation.UserLookup and
vacation.ChannelLookup. Send failures surface as vacation.DeliveryError:
the engine logs and reports them, and never retries.
*/
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/warp/vacation-engine/vacation"
)

const DefaultBaseURL = "https://slack.com/api"

// TokenSource resolves the access credential of a workspace.
// workspace.Directory satisfies this.
type TokenSource interface {
	AccessToken(ctx context.Context, workspaceID string) (string, error)
}

// Client is a minimal Slack Web API client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenSource
	Log     *slog.Logger
}

// NewClient builds a client against the public API.
func NewClient(tokens TokenSource, log *slog.Logger) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Tokens:  tokens,
		Log:     log,
	}
}

// apiResponse is the common envelope of Web API replies, with the handful of
// payload fields this client reads.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`

	UserID  string   `json:"user_id"` // auth.test
	Members []string `json:"members"` // conversations.members
	User    struct {
		Name string `json:"name"` // users.info
	} `json:"user"`
}

// =============================================================================
// MESSENGER
// =============================================================================

// SendMessage posts a single-section message to a channel or user DM.
func (c *Client) SendMessage(ctx context.Context, workspaceID, channelID, text string) error {
	return c.postBlocks(ctx, workspaceID, channelID, []Block{Section(text)})
}

// SendApprovalPrompt renders and posts the approve/decline prompt. The
// decision token rides in the actions block id so the decision action comes
// back with the correlation payload intact.
func (c *Client) SendApprovalPrompt(ctx context.Context, workspaceID, channelID string, prompt vacation.ApprovalPrompt) error {
	blocks := []Block{
		Section(fmt.Sprintf("@%s want to book a *vacation* for the following dates:\n\n", prompt.RequesterName)),
		Divider(),
		Section(fmt.Sprintf("*%s - %s*\n\n",
			vacation.DisplayDate(prompt.Start), vacation.DisplayDate(prompt.End))),
		Divider(),
		{
			Type:    "actions",
			BlockID: prompt.Token.Encode(),
			Elements: []Element{
				Button(vacation.ActionApprove, "Approve", string(vacation.StatusApproved)),
				Button(vacation.ActionDecline, "Decline", string(vacation.StatusDeclined)),
			},
		},
	}
	return c.postBlocks(ctx, workspaceID, channelID, blocks)
}

// SendWebhookMessage posts to a reply webhook instead of the API, so it
// needs no workspace token.
func (c *Client) SendWebhookMessage(ctx context.Context, webhookURL, text string) error {
	body, err := json.Marshal(map[string]any{"blocks": []Block{Section(text)}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &vacation.DeliveryError{Destination: webhookURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &vacation.DeliveryError{
			Destination: webhookURL,
			Err:         fmt.Errorf("webhook answered %s", resp.Status),
		}
	}
	return nil
}

func (c *Client) postBlocks(ctx context.Context, workspaceID, channelID string, blocks []Block) error {
	c.Log.Info("sending message", "workspace", workspaceID, "channel", channelID)
	payload := map[string]any{"channel": channelID, "blocks": blocks}
	_, err := c.call(ctx, workspaceID, "chat.postMessage", payload)
	if err != nil {
		return &vacation.DeliveryError{Destination: channelID, Err: err}
	}
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// UserName resolves a user's display name via users.info.
func (c *Client) UserName(ctx context.Context, workspaceID, userID string) (string, error) {
	resp, err := c.get(ctx, workspaceID, "users.info", url.Values{"user": {userID}})
	if err != nil {
		return "", err
	}
	return resp.User.Name, nil
}

// ChannelMembers lists the member ids of a channel.
func (c *Client) ChannelMembers(ctx context.Context, workspaceID, channelID string) ([]string, error) {
	resp, err := c.get(ctx, workspaceID, "conversations.members", url.Values{"channel": {channelID}})
	if err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// BotUserID returns the bot's own user id in the workspace via auth.test.
func (c *Client) BotUserID(ctx context.Context, workspaceID string) (string, error) {
	resp, err := c.call(ctx, workspaceID, "auth.test", map[string]any{})
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) call(ctx context.Context, workspaceID, method string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.send(ctx, workspaceID, method, req)
}

func (c *Client) get(ctx context.Context, workspaceID, method string, query url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/"+method+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, workspaceID, method, req)
}

func (c *Client) send(ctx context.Context, workspaceID, method string, req *http.Request) (*apiResponse, error) {
	token, err := c.Tokens.AccessToken(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%s: unreadable response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s: API error %q", method, parsed.Error)
	}
	return &parsed, nil
}
