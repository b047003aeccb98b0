package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"qtbridge/internal/correlation"
	apperrors "qtbridge/internal/errors"
	"qtbridge/internal/metrics"
	"qtbridge/internal/models"
	"qtbridge/internal/retry"
	"qtbridge/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	qqGroup   = int64(111)
	qqUser    = int64(222)
	tgChat    = int64(-1001)
	tgPrivate = int64(3003)
	tgAllowed = int64(4004)
)

type harness struct {
	coord      *Coordinator
	store      *correlation.Store
	target     *mockOutbound
	normalizer *mockNormalizer
	replier    *mockReplier
	registry   *metrics.Registry
}

func testChannels(t *testing.T) *ChannelManager {
	t.Helper()
	cm, err := NewChannelManager(models.ForwardConfig{
		Groups: map[int64]int64{qqGroup: tgChat},
		Users:  map[int64]int64{qqUser: tgPrivate},
		Allow:  []int64{tgAllowed},
	})
	require.NoError(t, err)
	return cm
}

func testConfig() CoordinatorConfig {
	return CoordinatorConfig{
		RecallEnabled:    true,
		DeleteOnlyPrefix: "/del",
		ChatIDCommand:    "/chatid",
		ChatIDLabel:      "Chat ID",
		EchoWindow:       8 * time.Second,
		Retry:            retry.FixedConfig(3, time.Millisecond),
	}
}

func newHarness(t *testing.T, source models.Platform, config CoordinatorConfig) *harness {
	t.Helper()
	store, err := correlation.NewStore(100)
	require.NoError(t, err)

	h := &harness{
		store:      store,
		normalizer: &mockNormalizer{},
		registry:   metrics.NewRegistry(),
	}

	var replier Replier
	if source == models.PlatformQQ {
		h.target = &mockOutbound{platform: models.PlatformTelegram}
	} else {
		h.target = &mockOutbound{
			platform: models.PlatformQQ,
			caps:     models.Capabilities{InlineImages: true, EchoesOwnMessages: true},
		}
		h.replier = &mockReplier{}
		replier = h.replier
	}

	h.coord = NewCoordinator(source, config, store, testChannels(t), h.normalizer, h.target, replier, h.registry, quietLogger())
	return h
}

func qqEvent(kind models.EventKind, scope models.Scope, messageID string) *models.InboundEvent {
	return &models.InboundEvent{
		ID:         "evt-" + messageID,
		Kind:       kind,
		Identity:   models.MessageIdentity{Platform: models.PlatformQQ, Scope: scope, MessageID: messageID},
		SenderID:   42,
		SenderName: "Alice",
	}
}

func tgEvent(kind models.EventKind, chatID int64, messageID, text string) *models.InboundEvent {
	return &models.InboundEvent{
		ID:         "evt-" + messageID,
		Kind:       kind,
		Identity:   models.MessageIdentity{Platform: models.PlatformTelegram, Scope: models.GroupScope(chatID), MessageID: messageID},
		SenderID:   7,
		SenderName: "Bob",
		Text:       text,
	}
}

func tgID(messageID string) models.MessageIdentity {
	return models.MessageIdentity{Platform: models.PlatformTelegram, Scope: models.GroupScope(tgChat), MessageID: messageID}
}

func qqID(messageID string) models.MessageIdentity {
	return models.MessageIdentity{Platform: models.PlatformQQ, Scope: models.GroupScope(qqGroup), MessageID: messageID}
}

func labels(source models.Platform, kind models.EventKind) map[string]string {
	return map[string]string{"source": string(source), "kind": string(kind)}
}

func TestCoordinator_FansOutImagesToTelegram(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "500")

	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{
		models.ImageSegment("https://img/1.png"),
		models.ImageSegment("https://img/2.png"),
		models.TextSegment("look at these"),
	})

	isImage := func(url string) interface{} {
		return mock.MatchedBy(func(msg models.OutboundMessage) bool {
			return len(msg.Segments) == 1 && msg.Segments[0].Kind == models.SegmentImage && msg.Segments[0].URL == url
		})
	}
	isText := mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return len(msg.Segments) == 1 && msg.Segments[0].Kind == models.SegmentText
	})

	call1 := h.target.On("Send", mock.Anything, isImage("https://img/1.png")).Return(tgID("10"), nil).Once()
	call2 := h.target.On("Send", mock.Anything, isImage("https://img/2.png")).Return(tgID("11"), nil).Once().NotBefore(call1)
	h.target.On("Send", mock.Anything, isText).Return(tgID("12"), nil).Once().NotBefore(call2)

	require.NoError(t, h.coord.Handle(context.Background(), ev))

	h.target.AssertNumberOfCalls(t, "Send", 3)
	target, ok := h.store.LookupTarget(ev.Identity)
	require.True(t, ok)
	assert.Equal(t, tgID("12"), target)
	assert.Equal(t, float64(3), h.registry.CounterValue(metrics.MessagesForwarded, labels(models.PlatformQQ, models.EventMessage)))
}

func TestCoordinator_AllSendsTargetMappedScope(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.PrivateScope(qqUser), "501")

	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("hi")})
	h.target.On("Send", mock.Anything, mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return msg.Scope == models.GroupScope(tgPrivate) && msg.SenderName == "Alice"
	})).Return(models.MessageIdentity{Platform: models.PlatformTelegram, Scope: models.GroupScope(tgPrivate), MessageID: "1"}, nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertExpectations(t)
}

func TestCoordinator_Recall(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		recorded    bool
		deleteCalls int
		keepsRecord bool
	}{
		{name: "enabled with record", enabled: true, recorded: true, deleteCalls: 1, keepsRecord: false},
		{name: "disabled", enabled: false, recorded: true, deleteCalls: 0, keepsRecord: true},
		{name: "enabled without record", enabled: true, recorded: false, deleteCalls: 0, keepsRecord: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.RecallEnabled = tt.enabled
			h := newHarness(t, models.PlatformQQ, config)

			ev := qqEvent(models.EventRecall, models.GroupScope(qqGroup), "600")
			if tt.recorded {
				h.store.Record(ev.Identity, tgID("60"))
			}
			h.target.On("Delete", mock.Anything, tgID("60")).Return(nil)

			require.NoError(t, h.coord.Handle(context.Background(), ev))

			h.target.AssertNumberOfCalls(t, "Delete", tt.deleteCalls)
			h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
			_, ok := h.store.LookupTarget(ev.Identity)
			assert.Equal(t, tt.keepsRecord, ok)
		})
	}
}

func TestCoordinator_RecallDeleteFailureStillForgets(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventRecall, models.GroupScope(qqGroup), "601")
	h.store.Record(ev.Identity, tgID("61"))
	h.target.On("Delete", mock.Anything, tgID("61")).Return(errors.New("message can't be deleted"))

	err := h.coord.Handle(context.Background(), ev)

	assert.Error(t, err)
	_, ok := h.store.LookupTarget(ev.Identity)
	assert.False(t, ok)
}

func TestCoordinator_RecallOfCopyIsIgnored(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	// A QQ copy of a Telegram message being recalled on QQ has no forward record
	h.store.Record(tgID("70"), qqID("700"))

	ev := qqEvent(models.EventRecall, models.GroupScope(qqGroup), "700")
	require.NoError(t, h.coord.Handle(context.Background(), ev))

	h.target.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	_, ok := h.store.LookupTarget(tgID("70"))
	assert.True(t, ok)
}

func TestCoordinator_RetryThenSucceed(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "800")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("retry me")})

	transient := apperrors.NewTransportError("telegram", "sendMessage", errors.New("connection reset"))
	h.target.On("Send", mock.Anything, mock.Anything).Return(models.MessageIdentity{}, transient).Twice()
	h.target.On("Send", mock.Anything, mock.Anything).Return(tgID("80"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))

	h.target.AssertNumberOfCalls(t, "Send", 3)
	target, ok := h.store.LookupTarget(ev.Identity)
	require.True(t, ok)
	assert.Equal(t, tgID("80"), target)
}

func TestCoordinator_RetryExhausted(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "801")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("doomed")})

	transient := apperrors.NewTransportError("telegram", "sendMessage", errors.New("timeout"))
	h.target.On("Send", mock.Anything, mock.Anything).Return(models.MessageIdentity{}, transient)

	err := h.coord.Handle(context.Background(), ev)

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	h.target.AssertNumberOfCalls(t, "Send", 3)
	_, ok := h.store.LookupTarget(ev.Identity)
	assert.False(t, ok)
	assert.Equal(t, float64(1), h.registry.CounterValue(metrics.SendFailures, labels(models.PlatformQQ, models.EventMessage)))
}

func TestCoordinator_PermanentErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "802")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("bad")})
	h.target.On("Send", mock.Anything, mock.Anything).
		Return(models.MessageIdentity{}, apperrors.NewInvalidInputError("chat_id", "chat not found"))

	assert.Error(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertNumberOfCalls(t, "Send", 1)
}

func TestCoordinator_ClientAPIErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "803")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("*unbalanced")})

	rejected := apperrors.NewAPIError("telegram", "sendMessage", 400, errors.New("Bad Request: can't parse entities"))
	h.target.On("Send", mock.Anything, mock.Anything).Return(models.MessageIdentity{}, rejected)

	err := h.coord.Handle(context.Background(), ev)

	assert.ErrorIs(t, err, rejected)
	h.target.AssertNumberOfCalls(t, "Send", 1)
}

func TestCoordinator_GatewayBadArgumentIsNotRetried(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	ev := tgEvent(models.EventMessage, tgChat, "804", "hello")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("hello")})

	badArg := apperrors.NewAPIError("qq", "send_group_msg", 200, errors.New("retcode 100: bad argument"))
	badArg.Retryable = false
	h.target.On("Send", mock.Anything, mock.Anything).Return(models.MessageIdentity{}, badArg)

	assert.Error(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertNumberOfCalls(t, "Send", 1)
	assert.Zero(t, h.store.Stats().PendingEchoes)
}

func TestCoordinator_OpenBreakerIsNotRetried(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "805")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("later")})
	h.target.On("Send", mock.Anything, mock.Anything).
		Return(models.MessageIdentity{}, &circuitbreaker.CircuitBreakerError{Name: "telegram", State: circuitbreaker.StateOpen})

	assert.Error(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertNumberOfCalls(t, "Send", 1)
}

func TestCoordinator_EchoIsSuppressedOnce(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	h.store.MarkEchoExpected(models.PlatformQQ, models.GroupScope(qqGroup))

	echo := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "900")
	echo.FromSelf = true
	require.NoError(t, h.coord.Handle(context.Background(), echo))
	h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
	assert.Equal(t, float64(1), h.registry.CounterValue(metrics.EchoesSuppressed, labels(models.PlatformQQ, models.EventMessage)))

	// The guard was single use: the next message from the bot account is forwarded
	next := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "901")
	next.FromSelf = true
	h.normalizer.On("Normalize", mock.Anything, next).Return([]models.Segment{models.TextSegment("typed by a human")})
	h.target.On("Send", mock.Anything, mock.Anything).Return(tgID("91"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), next))
	h.target.AssertNumberOfCalls(t, "Send", 1)
}

func TestCoordinator_EchoGuardIsScopeSpecific(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	h.store.MarkEchoExpected(models.PlatformQQ, models.GroupScope(qqGroup))

	ev := qqEvent(models.EventMessage, models.PrivateScope(qqUser), "902")
	ev.FromSelf = true
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("elsewhere")})
	h.target.On("Send", mock.Anything, mock.Anything).Return(tgID("92"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertNumberOfCalls(t, "Send", 1)
	assert.True(t, h.store.ConsumeEchoIfPending(models.PlatformQQ, models.GroupScope(qqGroup), 8*time.Second))
}

func TestCoordinator_RecallDoesNotConsumeEchoGuard(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	h.store.MarkEchoExpected(models.PlatformQQ, models.GroupScope(qqGroup))

	ev := qqEvent(models.EventRecall, models.GroupScope(qqGroup), "903")
	ev.FromSelf = true
	require.NoError(t, h.coord.Handle(context.Background(), ev))

	assert.True(t, h.store.ConsumeEchoIfPending(models.PlatformQQ, models.GroupScope(qqGroup), 8*time.Second))
}

func TestCoordinator_SendToQQArmsEchoGuard(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	ev := tgEvent(models.EventMessage, tgChat, "20", "hello")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("hello")})
	h.target.On("Send", mock.Anything, mock.Anything).Return(qqID("2000"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))

	assert.True(t, h.store.ConsumeEchoIfPending(models.PlatformQQ, models.GroupScope(qqGroup), 8*time.Second))
	source, ok := h.store.LookupSource(qqID("2000"))
	require.True(t, ok)
	assert.Equal(t, ev.Identity, source)
}

func TestCoordinator_FailedSendToQQClearsEchoGuard(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	ev := tgEvent(models.EventMessage, tgChat, "21", "hello")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("hello")})
	h.target.On("Send", mock.Anything, mock.Anything).
		Return(models.MessageIdentity{}, apperrors.NewTransportError("qq", "send_group_msg", errors.New("refused")))

	require.Error(t, h.coord.Handle(context.Background(), ev))
	assert.False(t, h.store.ConsumeEchoIfPending(models.PlatformQQ, models.GroupScope(qqGroup), 8*time.Second))
}

func TestCoordinator_InlineImagesToQQInOneSend(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	ev := tgEvent(models.EventMessage, tgChat, "22", "")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{
		models.ImageSegment("https://files/a.jpg"),
		models.TextSegment("caption"),
	})
	h.target.On("Send", mock.Anything, mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return len(msg.Segments) == 2
	})).Return(qqID("2200"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertExpectations(t)
}

func TestCoordinator_ScopeFiltering(t *testing.T) {
	t.Run("unmapped QQ group", func(t *testing.T) {
		h := newHarness(t, models.PlatformQQ, testConfig())
		ev := qqEvent(models.EventMessage, models.GroupScope(999), "1")

		require.NoError(t, h.coord.Handle(context.Background(), ev))
		h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
		assert.Equal(t, float64(1), h.registry.CounterValue(metrics.EventsIgnored, labels(models.PlatformQQ, models.EventMessage)))
	})

	t.Run("unknown Telegram chat cannot run commands", func(t *testing.T) {
		h := newHarness(t, models.PlatformTelegram, testConfig())
		ev := tgEvent(models.EventMessage, 5555, "1", "/chatid")

		require.NoError(t, h.coord.Handle(context.Background(), ev))
		h.replier.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("allowed chat is not forwarded", func(t *testing.T) {
		h := newHarness(t, models.PlatformTelegram, testConfig())
		ev := tgEvent(models.EventMessage, tgAllowed, "2", "just chatting")

		require.NoError(t, h.coord.Handle(context.Background(), ev))
		h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
		h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}

func TestCoordinator_ChatIDCommand(t *testing.T) {
	for _, text := range []string{"/chatid", "/chatid@qtbridge_bot", "  /chatid please"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t, models.PlatformTelegram, testConfig())
			ev := tgEvent(models.EventMessage, tgAllowed, "3", text)
			h.replier.On("Reply", mock.Anything, models.GroupScope(tgAllowed), "Chat ID: `4004`", "3").Return(nil).Once()

			require.NoError(t, h.coord.Handle(context.Background(), ev))

			h.replier.AssertExpectations(t)
			h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestCoordinator_ChatIDCommandInMappedChatIsNotForwarded(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	ev := tgEvent(models.EventMessage, tgChat, "4", "/chatid")
	h.replier.On("Reply", mock.Anything, models.GroupScope(tgChat), "Chat ID: `-1001`", "4").Return(nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))

	h.replier.AssertExpectations(t)
	h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
}

func TestCoordinator_EditIntoChatIDCommandIsAnswered(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	original := tgEvent(models.EventMessage, tgChat, "5", "what is this chat")
	h.store.Record(original.Identity, qqID("500"))

	edit := tgEvent(models.EventEdit, tgChat, "5", "/chatid")
	h.target.On("Delete", mock.Anything, qqID("500")).Return(nil).Once()
	h.replier.On("Reply", mock.Anything, models.GroupScope(tgChat), "Chat ID: `-1001`", "5").Return(nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), edit))

	h.replier.AssertExpectations(t)
	h.target.AssertExpectations(t)
	h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	h.normalizer.AssertNotCalled(t, "Normalize", mock.Anything, mock.Anything)
	_, ok := h.store.LookupTarget(edit.Identity)
	assert.False(t, ok)
}

func TestCoordinator_EditReplacesCopy(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	original := tgEvent(models.EventMessage, tgChat, "30", "helo")
	h.store.Record(original.Identity, qqID("3000"))

	edit := tgEvent(models.EventEdit, tgChat, "30", "hello")
	h.target.On("Delete", mock.Anything, qqID("3000")).Return(nil).Once()
	h.normalizer.On("Normalize", mock.Anything, edit).Return([]models.Segment{models.TextSegment("hello")})
	h.target.On("Send", mock.Anything, mock.Anything).Return(qqID("3001"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), edit))

	h.target.AssertExpectations(t)
	target, ok := h.store.LookupTarget(edit.Identity)
	require.True(t, ok)
	assert.Equal(t, qqID("3001"), target)
	_, ok = h.store.LookupSource(qqID("3000"))
	assert.False(t, ok)
}

func TestCoordinator_EditWithDeletePrefixOnlyDeletes(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	h.store.Record(tgID("31"), qqID("3100"))

	edit := tgEvent(models.EventEdit, tgChat, "31", "/del")
	h.target.On("Delete", mock.Anything, qqID("3100")).Return(nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), edit))

	h.target.AssertExpectations(t)
	h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	_, ok := h.store.LookupTarget(edit.Identity)
	assert.False(t, ok)
}

func TestCoordinator_EditDeleteFailureStillResends(t *testing.T) {
	h := newHarness(t, models.PlatformTelegram, testConfig())
	h.store.Record(tgID("32"), qqID("3200"))

	edit := tgEvent(models.EventEdit, tgChat, "32", "changed")
	h.target.On("Delete", mock.Anything, qqID("3200")).Return(errors.New("too old")).Once()
	h.normalizer.On("Normalize", mock.Anything, edit).Return([]models.Segment{models.TextSegment("changed")})
	h.target.On("Send", mock.Anything, mock.Anything).Return(qqID("3201"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), edit))
	h.target.AssertExpectations(t)
}

func TestCoordinator_UnresolvedReplyDegrades(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "1000")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{
		models.ReplySegment(nil, "999"),
		models.TextSegment("replying to something old"),
	})
	h.target.On("Send", mock.Anything, mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return msg.ReplyTo == nil
	})).Return(tgID("100"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertExpectations(t)
}

func TestCoordinator_ResolvedReplyIsAttached(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "1001")
	parent := tgID("55")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{
		models.ReplySegment(&parent, "1"),
		models.TextSegment("agreed"),
	})
	h.target.On("Send", mock.Anything, mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return msg.ReplyTo != nil && *msg.ReplyTo == parent
	})).Return(tgID("101"), nil).Once()

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertExpectations(t)
}

func TestCoordinator_EmptyContentIsNotSent(t *testing.T) {
	h := newHarness(t, models.PlatformQQ, testConfig())
	ev := qqEvent(models.EventMessage, models.GroupScope(qqGroup), "1100")
	h.normalizer.On("Normalize", mock.Anything, ev).Return([]models.Segment{models.TextSegment("   ")})

	require.NoError(t, h.coord.Handle(context.Background(), ev))
	h.target.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCoordinatorConfigFrom(t *testing.T) {
	cfg := &models.Config{
		Recall:   models.RecallConfig{Enabled: true},
		Edit:     models.EditConfig{DeleteOnlyPrefix: "/rm"},
		Echo:     models.EchoConfig{WindowSec: 8},
		Retry:    models.RetryConfig{MaxAttempts: 3, DelayMs: 1000},
		Commands: models.CommandsConfig{ChatID: "/id"},
	}

	c := CoordinatorConfigFrom(cfg)

	assert.True(t, c.RecallEnabled)
	assert.Equal(t, "/rm", c.DeleteOnlyPrefix)
	assert.Equal(t, "/id", c.ChatIDCommand)
	assert.Equal(t, 8*time.Second, c.EchoWindow)
	assert.Equal(t, 3, c.Retry.MaxAttempts)
	assert.Equal(t, time.Second, c.Retry.Delay)
}
