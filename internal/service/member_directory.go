package service

import (
	"context"
	"fmt"
	"time"

	"qtbridge/internal/constants"
	"qtbridge/pkg/onebot"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

type memberKey struct {
	groupID int64
	userID  int64
}

// MemberDirectory resolves QQ group members to their display names and
// keeps recent answers for a while so busy groups do not hammer the gateway.
type MemberDirectory struct {
	api    onebot.API
	cache  *expirable.LRU[memberKey, string]
	logger *logrus.Logger
}

func NewMemberDirectory(api onebot.API, size int, ttl time.Duration, logger *logrus.Logger) *MemberDirectory {
	if size <= 0 {
		size = constants.DefaultMemberCacheSize
	}
	if ttl <= 0 {
		ttl = time.Duration(constants.DefaultMemberCacheMinutes) * time.Minute
	}
	return &MemberDirectory{
		api:    api,
		cache:  expirable.NewLRU[memberKey, string](size, nil, ttl),
		logger: logger,
	}
}

// MemberName returns the group card, falling back to the nickname
func (d *MemberDirectory) MemberName(ctx context.Context, groupID, userID int64) (string, error) {
	key := memberKey{groupID: groupID, userID: userID}
	if name, ok := d.cache.Get(key); ok {
		return name, nil
	}

	info, err := d.api.GetGroupMemberInfo(ctx, groupID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get member %d of group %d: %w", userID, groupID, err)
	}

	name := info.DisplayName()
	d.cache.Add(key, name)
	d.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"user_id":  userID,
	}).Debug("Cached group member name")
	return name, nil
}

// Forget drops a cached name, e.g. after a card change
func (d *MemberDirectory) Forget(groupID, userID int64) {
	d.cache.Remove(memberKey{groupID: groupID, userID: userID})
}

func (d *MemberDirectory) Len() int {
	return d.cache.Len()
}
