package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OneBot sends group messages through a OneBot v11 HTTP API endpoint
// (go-cqhttp and compatible implementations).
type OneBot struct {
	apiURL      string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewOneBot creates a sender for the given API base URL. accessToken may be
// empty when the endpoint does not require authentication.
func NewOneBot(apiURL, accessToken string, timeout time.Duration, logger *slog.Logger) *OneBot {
	return &OneBot{
		apiURL:      strings.TrimRight(apiURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type sendGroupMsgRequest struct {
	GroupID int64  `json:"group_id"`
	Message string `json:"message"`
}

type apiResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Wording string `json:"wording,omitempty"`
}

// Send posts a send_group_msg call for the group. The group must be a
// numeric QQ group ID.
func (o *OneBot) Send(ctx context.Context, group, message string) error {
	groupID, err := strconv.ParseInt(group, 10, 64)
	if err != nil {
		return fmt.Errorf("group id %q is not numeric", group)
	}

	body, err := json.Marshal(sendGroupMsgRequest{GroupID: groupID, Message: message})
	if err != nil {
		return fmt.Errorf("encoding send_group_msg request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL+"/send_group_msg", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send_group_msg request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+o.accessToken)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending to group %s: %w", group, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send_group_msg returned status %d", resp.StatusCode)
	}

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decoding send_group_msg response: %w", err)
	}
	if api.Retcode != 0 {
		if api.Wording != "" {
			return fmt.Errorf("send_group_msg retcode %d: %s", api.Retcode, api.Wording)
		}
		return fmt.Errorf("send_group_msg retcode %d", api.Retcode)
	}

	o.logger.Debug("message delivered", "group", group)
	return nil
}
