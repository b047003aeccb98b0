package service

import (
	"fmt"
	"sort"
	"sync"

	"qtbridge/internal/models"
)

// Route is one configured QQ scope and the Telegram chat it mirrors
type Route struct {
	QQ       models.Scope `json:"qq"`
	Telegram models.Scope `json:"telegram"`
}

// ChannelManager manages the mapping between QQ scopes and Telegram chats
type ChannelManager struct {
	qqToTelegram map[models.Scope]models.Scope
	telegramToQQ map[models.Scope]models.Scope
	allowed      map[models.Scope]bool // extra Telegram chats that may run commands
	mu           sync.RWMutex
}

// NewChannelManager creates a new channel manager from configuration. Every
// Telegram chat may appear in at most one route so the reverse lookup is
// well defined.
func NewChannelManager(cfg models.ForwardConfig) (*ChannelManager, error) {
	cm := &ChannelManager{
		qqToTelegram: make(map[models.Scope]models.Scope),
		telegramToQQ: make(map[models.Scope]models.Scope),
		allowed:      make(map[models.Scope]bool),
	}

	add := func(qq models.Scope, chatID int64) error {
		if qq.ID == 0 {
			return fmt.Errorf("empty QQ id in %s route", qq.Kind)
		}
		if chatID == 0 {
			return fmt.Errorf("empty Telegram chat for QQ %s", qq)
		}
		tg := models.GroupScope(chatID)
		if existing, dup := cm.telegramToQQ[tg]; dup {
			return fmt.Errorf("duplicate Telegram chat %d: mapped from both %s and %s", chatID, existing, qq)
		}
		cm.qqToTelegram[qq] = tg
		cm.telegramToQQ[tg] = qq
		return nil
	}

	for _, groupID := range sortedKeys(cfg.Groups) {
		if err := add(models.GroupScope(groupID), cfg.Groups[groupID]); err != nil {
			return nil, err
		}
	}
	for _, userID := range sortedKeys(cfg.Users) {
		if err := add(models.PrivateScope(userID), cfg.Users[userID]); err != nil {
			return nil, err
		}
	}

	if len(cm.qqToTelegram) == 0 {
		return nil, fmt.Errorf("no forwarding routes configured")
	}

	for _, chatID := range cfg.Allow {
		cm.allowed[models.GroupScope(chatID)] = true
	}

	return cm, nil
}

// Destination returns the scope on the other platform that mirrors scope
func (cm *ChannelManager) Destination(platform models.Platform, scope models.Scope) (models.Scope, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var dest models.Scope
	var ok bool
	switch platform {
	case models.PlatformQQ:
		dest, ok = cm.qqToTelegram[scope]
	case models.PlatformTelegram:
		dest, ok = cm.telegramToQQ[scope]
	}
	return dest, ok
}

// IsMapped checks if a scope has a forwarding route
func (cm *ChannelManager) IsMapped(platform models.Platform, scope models.Scope) bool {
	_, ok := cm.Destination(platform, scope)
	return ok
}

// IsAllowed reports whether the bridge acts on events from scope at all.
// Mapped scopes are always allowed; Telegram chats on the allow list are
// allowed without being forwarded.
func (cm *ChannelManager) IsAllowed(platform models.Platform, scope models.Scope) bool {
	if cm.IsMapped(platform, scope) {
		return true
	}
	if platform != models.PlatformTelegram {
		return false
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.allowed[scope]
}

// RouteCount returns the number of configured routes
func (cm *ChannelManager) RouteCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return len(cm.qqToTelegram)
}

// Routes returns every route ordered by QQ scope
func (cm *ChannelManager) Routes() []Route {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	routes := make([]Route, 0, len(cm.qqToTelegram))
	for qq, tg := range cm.qqToTelegram {
		routes = append(routes, Route{QQ: qq, Telegram: tg})
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].QQ.Kind != routes[j].QQ.Kind {
			return routes[i].QQ.Kind < routes[j].QQ.Kind
		}
		return routes[i].QQ.ID < routes[j].QQ.ID
	})
	return routes
}

func sortedKeys(m map[int64]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
