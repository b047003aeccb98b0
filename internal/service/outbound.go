package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"qtbridge/internal/compose"
	apperrors "qtbridge/internal/errors"
	"qtbridge/internal/models"
	"qtbridge/pkg/circuitbreaker"
	"qtbridge/pkg/onebot"
	"qtbridge/pkg/telegram"
)

// Outbound is everything the coordinator needs from a target platform
type Outbound interface {
	Platform() models.Platform
	Capabilities() models.Capabilities
	Send(ctx context.Context, msg models.OutboundMessage) (models.MessageIdentity, error)
	Delete(ctx context.Context, id models.MessageIdentity) error
}

// Replier answers a command in the chat it came from
type Replier interface {
	Reply(ctx context.Context, scope models.Scope, text string, replyTo string) error
}

// NewOutboundBreaker returns a breaker that only counts transient failures.
// Rejected input and non-retryable API errors, such as deleting a message
// that is too old, do not trip it.
func NewOutboundBreaker(name string, opts ...circuitbreaker.Option) *circuitbreaker.CircuitBreaker {
	opts = append([]circuitbreaker.Option{
		circuitbreaker.WithFailurePredicate(func(err error) bool { return !apperrors.IsPermanent(err) }),
	}, opts...)
	return circuitbreaker.New(name, 5, 30*time.Second, opts...)
}

// QQOutbound sends through the OneBot HTTP API
type QQOutbound struct {
	api        onebot.API
	showSender bool
	breaker    *circuitbreaker.CircuitBreaker
}

func NewQQOutbound(api onebot.API, showSender bool, breaker *circuitbreaker.CircuitBreaker) *QQOutbound {
	return &QQOutbound{api: api, showSender: showSender, breaker: breaker}
}

func (o *QQOutbound) Platform() models.Platform { return models.PlatformQQ }

// QQ accepts images inline and reports the bot's own sends back on the
// event stream.
func (o *QQOutbound) Capabilities() models.Capabilities {
	return models.Capabilities{InlineImages: true, EchoesOwnMessages: true}
}

func (o *QQOutbound) Send(ctx context.Context, msg models.OutboundMessage) (models.MessageIdentity, error) {
	segments := compose.RenderQQ(msg, o.showSender)
	if len(segments) == 0 {
		return models.MessageIdentity{}, apperrors.NewInvalidInputError("segments", "nothing to send")
	}

	var id int64
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		switch msg.Scope.Kind {
		case models.ScopeGroup:
			id, err = o.api.SendGroupMsg(ctx, msg.Scope.ID, segments)
		case models.ScopePrivate:
			id, err = o.api.SendPrivateMsg(ctx, msg.Scope.ID, segments)
		default:
			err = apperrors.NewInvalidInputError("scope", fmt.Sprintf("unknown scope kind %q", msg.Scope.Kind))
		}
		return err
	})
	if err != nil {
		return models.MessageIdentity{}, err
	}

	return models.MessageIdentity{
		Platform:  models.PlatformQQ,
		Scope:     msg.Scope,
		MessageID: strconv.FormatInt(id, 10),
	}, nil
}

func (o *QQOutbound) Delete(ctx context.Context, id models.MessageIdentity) error {
	messageID, err := strconv.ParseInt(id.MessageID, 10, 64)
	if err != nil {
		return apperrors.NewInvalidInputError("message_id", fmt.Sprintf("not a QQ message id: %q", id.MessageID))
	}
	return o.breaker.Execute(ctx, func(ctx context.Context) error {
		return o.api.DeleteMsg(ctx, messageID)
	})
}

// TelegramOutbound sends MarkdownV2 text through the Bot API
type TelegramOutbound struct {
	api     telegram.API
	labels  models.Labels
	breaker *circuitbreaker.CircuitBreaker
}

func NewTelegramOutbound(api telegram.API, labels models.Labels, breaker *circuitbreaker.CircuitBreaker) *TelegramOutbound {
	return &TelegramOutbound{api: api, labels: labels, breaker: breaker}
}

func (o *TelegramOutbound) Platform() models.Platform { return models.PlatformTelegram }

func (o *TelegramOutbound) Capabilities() models.Capabilities {
	return models.Capabilities{}
}

func (o *TelegramOutbound) Send(ctx context.Context, msg models.OutboundMessage) (models.MessageIdentity, error) {
	text := compose.RenderTelegram(msg, o.labels)
	if text == "" {
		return models.MessageIdentity{}, apperrors.NewInvalidInputError("text", "nothing to send")
	}

	replyTo := 0
	if msg.ReplyTo != nil {
		replyTo, _ = strconv.Atoi(msg.ReplyTo.MessageID)
	}

	id, err := o.sendText(ctx, msg.Scope, text, replyTo)
	if err != nil {
		return models.MessageIdentity{}, err
	}
	return models.MessageIdentity{
		Platform:  models.PlatformTelegram,
		Scope:     msg.Scope,
		MessageID: strconv.Itoa(id),
	}, nil
}

func (o *TelegramOutbound) Delete(ctx context.Context, id models.MessageIdentity) error {
	messageID, err := strconv.Atoi(id.MessageID)
	if err != nil {
		return apperrors.NewInvalidInputError("message_id", fmt.Sprintf("not a Telegram message id: %q", id.MessageID))
	}
	return o.breaker.Execute(ctx, func(ctx context.Context) error {
		return o.api.DeleteMessage(ctx, id.Scope.ID, messageID)
	})
}

// Reply sends text that is already MarkdownV2
func (o *TelegramOutbound) Reply(ctx context.Context, scope models.Scope, text string, replyTo string) error {
	id, _ := strconv.Atoi(replyTo)
	_, err := o.sendText(ctx, scope, text, id)
	return err
}

func (o *TelegramOutbound) sendText(ctx context.Context, scope models.Scope, text string, replyTo int) (int, error) {
	var id int
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = o.api.SendText(ctx, scope.ID, text, replyTo)
		return err
	})
	return id, err
}

// ChatIDResponse renders the answer to the chat id command
func ChatIDResponse(label string, chatID int64) string {
	return telegram.Escape(label+": ") + telegram.Code(strconv.FormatInt(chatID, 10))
}
