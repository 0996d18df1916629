package service

import (
	"slices"
	"sync"
)

// Runtime хранит разрешения чатов и чаты, замеченные за время работы процесса.
// Замеченные чаты не сохраняются между перезапусками.
type Runtime struct {
	allowed         map[int64]struct{}
	deployAllowed   map[int64]struct{}
	allowedList     []int64
	alertRecipients []int64

	mu    sync.Mutex
	chats map[int64]struct{}
}

// NewRuntime создает реестр. Пустой allowlist разрешает все чаты.
func NewRuntime(allowed, deployAllowed, alertRecipients []int64) *Runtime {
	return &Runtime{
		allowed:         toSet(allowed),
		deployAllowed:   toSet(deployAllowed),
		allowedList:     slices.Clone(allowed),
		alertRecipients: slices.Clone(alertRecipients),
		chats:           make(map[int64]struct{}),
	}
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (r *Runtime) IsChatAllowed(chatID int64) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[chatID]
	return ok
}

func (r *Runtime) IsDeployChatAllowed(chatID int64) bool {
	if len(r.deployAllowed) == 0 {
		return true
	}
	_, ok := r.deployAllowed[chatID]
	return ok
}

// RegisterChat запоминает чат как возможного получателя алертов.
func (r *Runtime) RegisterChat(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chatID] = struct{}{}
}

// Recipients возвращает получателей алертов: явно заданные чаты,
// иначе allowlist, иначе чаты, писавшие боту с момента запуска.
func (r *Runtime) Recipients() []int64 {
	if len(r.alertRecipients) > 0 {
		return dedupSorted(r.alertRecipients)
	}
	if len(r.allowedList) > 0 {
		return dedupSorted(r.allowedList)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.chats))
	for id := range r.chats {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func dedupSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
