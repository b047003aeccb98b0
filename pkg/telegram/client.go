package telegram

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/sirupsen/logrus"

	apperrors "qtbridge/internal/errors"
	"qtbridge/internal/models"
)

// PublicAPIServer is the hosted Bot API
const PublicAPIServer = "https://api.telegram.org"

// API is the closed set of Bot API calls the bridge makes
type API interface {
	SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	ResolveFile(ctx context.Context, fileID string) (models.FileURLs, error)
}

type Client struct {
	bot         *telego.Bot
	token       string
	apiServer   string
	pollTimeout int
	logger      *logrus.Logger
}

// NewClient creates a Bot API client. apiURL may carry the "/bot" suffix of
// the classic endpoint form; it is stripped to get the server root.
func NewClient(token, apiURL string, pollTimeout int, logger *logrus.Logger, opts ...telego.BotOption) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}

	apiServer := APIServer(apiURL)
	options := append([]telego.BotOption{
		telego.WithAPIServer(apiServer),
		telego.WithLogger(logger),
	}, opts...)

	bot, err := telego.NewBot(token, options...)
	if err != nil {
		return nil, apperrors.NewConfigError("telegram.token", fmt.Sprintf("failed to create bot: %v", err))
	}

	return &Client{
		bot:         bot,
		token:       token,
		apiServer:   apiServer,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// APIServer normalizes a configured API URL to the server root
func APIServer(apiURL string) string {
	server := strings.TrimSuffix(strings.TrimSpace(apiURL), "/")
	server = strings.TrimSuffix(server, "/bot")
	if server == "" {
		return PublicAPIServer
	}
	return server
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	params := &telego.SendMessageParams{
		ChatID:    tu.ID(chatID),
		Text:      text,
		ParseMode: telego.ModeMarkdownV2,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}

	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	return msg.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		return classify("deleteMessage", err)
	}
	return nil
}

// ResolveFile turns a file handle into its download URLs. Native points at
// the public Bot API; Rewritten points at the configured server so a
// self-hosted instance can serve the file to the other side.
func (c *Client) ResolveFile(ctx context.Context, fileID string) (models.FileURLs, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return models.FileURLs{}, classify("getFile", err)
	}
	if file.FilePath == "" {
		return models.FileURLs{}, apperrors.NewNotFoundError("file path", fileID)
	}

	return c.fileURLs(file.FilePath), nil
}

func (c *Client) fileURLs(filePath string) models.FileURLs {
	path := fmt.Sprintf("/file/bot%s/%s", c.token, strings.TrimPrefix(filePath, "/"))
	return models.FileURLs{
		Native:    PublicAPIServer + path,
		Rewritten: c.apiServer + path,
	}
}

// Updates starts long polling for messages and edits. The channel closes
// when ctx is cancelled or polling stops.
func (c *Client) Updates(ctx context.Context) (<-chan telego.Update, error) {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        c.pollTimeout,
		AllowedUpdates: []string{"message", "edited_message"},
	})
	if err != nil {
		return nil, classify("getUpdates", err)
	}
	return updates, nil
}

func classify(method string, err error) error {
	var apiErr *ta.Error
	if stderrors.As(err, &apiErr) {
		appErr := apperrors.NewAPIError("telegram", method, apiErr.ErrorCode, err)
		if apiErr.ErrorCode == 400 && strings.Contains(apiErr.Description, "chat not found") {
			return apperrors.NewInvalidInputError("chat_id", apiErr.Description)
		}
		return appErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewTransportError("telegram", method, err)
}
