package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/fistoar/crm-realtime/types"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string][]types.EventHandler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string][]types.EventHandler)}
}

func (s *fakeSubscriber) On(event string, h types.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

func (s *fakeSubscriber) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *fakeSubscriber) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[event])
}

func (s *fakeSubscriber) emit(event string, payload string) {
	s.mu.Lock()
	hs := append([]types.EventHandler{}, s.handlers[event]...)
	s.mu.Unlock()
	for _, h := range hs {
		h([]byte(payload))
	}
}

type fakeShown struct {
	closed int
}

func (s *fakeShown) Close() error {
	s.closed++
	return nil
}

type fakeProvider struct {
	permission types.Permission
	answer     types.Permission
	requests   int
	showErr    error
	shown      []*types.Notification
	handles    []*fakeShown
}

func (p *fakeProvider) Permission() types.Permission { return p.permission }

func (p *fakeProvider) RequestPermission(ctx context.Context) (types.Permission, error) {
	p.requests++
	p.permission = p.answer
	return p.answer, nil
}

func (p *fakeProvider) Show(n *types.Notification) (Shown, error) {
	if p.showErr != nil {
		return nil, p.showErr
	}
	p.shown = append(p.shown, n)
	h := &fakeShown{}
	p.handles = append(p.handles, h)
	return h, nil
}

type fakePlayer struct {
	plays  int
	volume float64
	err    error
}

func (p *fakePlayer) Play(sound string, volume float64) error {
	p.plays++
	p.volume = volume
	return p.err
}

var errPlayback = errors.New("audio device busy")

type toast struct {
	title, message string
}

type fakeToaster struct {
	toasts []toast
}

func (t *fakeToaster) Toast(title, message string) {
	t.toasts = append(t.toasts, toast{title, message})
}
