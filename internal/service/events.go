package service

import (
	"sync"

	"skillpath_miniapp/internal/model"
)

// QuestNotifier fans engine events out to per-user subscribers (the
// websocket handler holds one channel per open connection). Delivery
// is best-effort: a subscriber that cannot keep up drops events rather
// than blocking the request that produced them.
type QuestNotifier struct {
	mu   sync.RWMutex
	subs map[int64][]chan model.QuestEvent
}

func NewQuestNotifier() *QuestNotifier {
	return &QuestNotifier{
		subs: make(map[int64][]chan model.QuestEvent),
	}
}

func (n *QuestNotifier) Subscribe(telegramID int64) chan model.QuestEvent {
	ch := make(chan model.QuestEvent, 8)

	n.mu.Lock()
	n.subs[telegramID] = append(n.subs[telegramID], ch)
	n.mu.Unlock()

	return ch
}

func (n *QuestNotifier) Unsubscribe(telegramID int64, ch chan model.QuestEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[telegramID]
	for i, sub := range subs {
		if sub == ch {
			n.subs[telegramID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(n.subs[telegramID]) == 0 {
		delete(n.subs, telegramID)
	}
}

func (n *QuestNotifier) SubscriberCount(telegramID int64) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[telegramID])
}

func (n *QuestNotifier) Publish(telegramID int64, event model.QuestEvent) {
	if n == nil {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[telegramID] {
		select {
		case ch <- event:
		default:
		}
	}
}
