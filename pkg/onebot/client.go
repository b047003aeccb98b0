package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "qtbridge/internal/errors"
)

// API is the closed set of gateway calls the bridge makes
type API interface {
	SendGroupMsg(ctx context.Context, groupID int64, message []Segment) (int64, error)
	SendPrivateMsg(ctx context.Context, userID int64, message []Segment) (int64, error)
	DeleteMsg(ctx context.Context, messageID int64) error
	GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (*MemberInfo, error)
	GetLoginInfo(ctx context.Context) (*LoginInfo, error)
}

type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      *logrus.Logger
}

type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

type sendResult struct {
	MessageID FlexInt `json:"message_id"`
}

func NewClient(baseURL, accessToken string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		client:      httpClient,
		logger:      logger,
	}
}

func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, message []Segment) (int64, error) {
	var result sendResult
	err := c.call(ctx, "send_group_msg", map[string]interface{}{
		"group_id": groupID,
		"message":  message,
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.MessageID.Int64(), nil
}

func (c *Client) SendPrivateMsg(ctx context.Context, userID int64, message []Segment) (int64, error) {
	var result sendResult
	err := c.call(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": message,
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.MessageID.Int64(), nil
}

func (c *Client) DeleteMsg(ctx context.Context, messageID int64) error {
	return c.call(ctx, "delete_msg", map[string]interface{}{
		"message_id": messageID,
	}, nil)
}

func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (*MemberInfo, error) {
	var info MemberInfo
	err := c.call(ctx, "get_group_member_info", map[string]interface{}{
		"group_id": groupID,
		"user_id":  userID,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	var info LoginInfo
	if err := c.call(ctx, "get_login_info", map[string]interface{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) call(ctx context.Context, action string, params interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	c.logger.WithFields(logrus.Fields{
		"action":  action,
		"payload": string(body),
	}).Debug("Calling OneBot API")

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewTransportError("qq", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTransportError("qq", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewAPIError("qq", action, resp.StatusCode,
			fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody)))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if result.RetCode != 0 {
		reason := result.Wording
		if reason == "" {
			reason = result.Message
		}
		// retcode 100 is a bad argument, 1xx/2xx otherwise are gateway side failures
		appErr := apperrors.NewAPIError("qq", action, http.StatusOK,
			fmt.Errorf("retcode %d: %s", result.RetCode, reason)).
			WithContext("retcode", result.RetCode)
		appErr.Retryable = result.RetCode != 100
		return appErr
	}

	if out == nil || len(result.Data) == 0 || string(result.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", action, err)
	}
	return nil
}
