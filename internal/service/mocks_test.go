package service

import (
	"context"
	"io"
	"sync"

	"qtbridge/internal/models"
	"qtbridge/pkg/onebot"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockOutbound struct {
	mock.Mock
	platform models.Platform
	caps     models.Capabilities
}

func (m *mockOutbound) Platform() models.Platform { return m.platform }
func (m *mockOutbound) Capabilities() models.Capabilities { return m.caps }

func (m *mockOutbound) Send(ctx context.Context, msg models.OutboundMessage) (models.MessageIdentity, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(models.MessageIdentity), args.Error(1)
}

func (m *mockOutbound) Delete(ctx context.Context, id models.MessageIdentity) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockReplier struct {
	mock.Mock
}

func (m *mockReplier) Reply(ctx context.Context, scope models.Scope, text string, replyTo string) error {
	args := m.Called(ctx, scope, text, replyTo)
	return args.Error(0)
}

type mockNormalizer struct {
	mock.Mock
}

func (m *mockNormalizer) Normalize(ctx context.Context, ev *models.InboundEvent) []models.Segment {
	args := m.Called(ctx, ev)
	if segs := args.Get(0); segs != nil {
		return segs.([]models.Segment)
	}
	return nil
}

type mockOneBotAPI struct {
	mock.Mock
}

func (m *mockOneBotAPI) SendGroupMsg(ctx context.Context, groupID int64, message []onebot.Segment) (int64, error) {
	args := m.Called(ctx, groupID, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOneBotAPI) SendPrivateMsg(ctx context.Context, userID int64, message []onebot.Segment) (int64, error) {
	args := m.Called(ctx, userID, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOneBotAPI) DeleteMsg(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *mockOneBotAPI) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (*onebot.MemberInfo, error) {
	args := m.Called(ctx, groupID, userID)
	if info := args.Get(0); info != nil {
		return info.(*onebot.MemberInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOneBotAPI) GetLoginInfo(ctx context.Context) (*onebot.LoginInfo, error) {
	args := m.Called(ctx)
	if info := args.Get(0); info != nil {
		return info.(*onebot.LoginInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTelegramAPI struct {
	mock.Mock
}

func (m *mockTelegramAPI) SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	args := m.Called(ctx, chatID, text, replyTo)
	return args.Int(0), args.Error(1)
}

func (m *mockTelegramAPI) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *mockTelegramAPI) ResolveFile(ctx context.Context, fileID string) (models.FileURLs, error) {
	args := m.Called(ctx, fileID)
	return args.Get(0).(models.FileURLs), args.Error(1)
}

// recordingSink collects dispatched events
type recordingSink struct {
	mu     sync.Mutex
	events []*models.InboundEvent
}

func (s *recordingSink) Dispatch(_ context.Context, ev *models.InboundEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Events() []*models.InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.InboundEvent(nil), s.events...)
}

// fakeStream replays canned events and then blocks until cancelled
type fakeStream struct {
	events []*onebot.Event
}

func (f *fakeStream) Run(ctx context.Context, handle func(*onebot.Event)) error {
	for _, ev := range f.events {
		handle(ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeStream) Connected() bool { return true }

// fakeUpdateSource hands out one prepared channel per call
type fakeUpdateSource struct {
	mu    sync.Mutex
	calls int
	batch [][]telego.Update
}

func (f *fakeUpdateSource) Updates(ctx context.Context) (<-chan telego.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan telego.Update, 8)
	if f.calls < len(f.batch) {
		for _, u := range f.batch[f.calls] {
			ch <- u
		}
	}
	f.calls++
	close(ch)
	return ch, nil
}

func (f *fakeUpdateSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
