package normalize

import (
	"context"

	"github.com/stretchr/testify/mock"

	"qtbridge/internal/models"
)

type mockMemberDirectory struct {
	mock.Mock
}

func (m *mockMemberDirectory) MemberName(ctx context.Context, groupID, userID int64) (string, error) {
	args := m.Called(ctx, groupID, userID)
	return args.String(0), args.Error(1)
}

type mockFileResolver struct {
	mock.Mock
}

func (m *mockFileResolver) ResolveFile(ctx context.Context, fileID string) (models.FileURLs, error) {
	args := m.Called(ctx, fileID)
	return args.Get(0).(models.FileURLs), args.Error(1)
}
