package notify

import (
	"context"
	"sync"
	"time"

	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const permissionPromptTimeout = time.Minute

// Provider is the platform notification capability.
type Provider interface {
	Permission() types.Permission
	RequestPermission(ctx context.Context) (types.Permission, error)
	Show(n *types.Notification) (Shown, error)
}

// Shown is a notification on screen.
type Shown interface {
	Close() error
}

// Player plays the confirmation sound.
type Player interface {
	Play(sound string, volume float64) error
}

// Toaster is the in-app alert surface.
type Toaster interface {
	Toast(title, message string)
}

// SocketProvider shows notifications through the desktop helper. The helper reports
// clicks back through the local API, which calls Click with the notification ID.
type SocketProvider struct {
	ipc *IPC

	mu         sync.RWMutex
	permission types.Permission
	clicks     map[string]func()
}

// NewSocketProvider starts from the permission recorded in config.
func NewSocketProvider(socketPath string, permission types.Permission) *SocketProvider {
	return &SocketProvider{
		ipc:        &IPC{SocketPath: socketPath},
		permission: permission,
		clicks:     make(map[string]func()),
	}
}

func (p *SocketProvider) Permission() types.Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.permission
}

// RequestPermission asks the helper to prompt the user. The helper owns the prompt, so
// ctx only bounds how long the caller is willing to wait for the answer.
func (p *SocketProvider) RequestPermission(ctx context.Context) (types.Permission, error) {
	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		// the helper answers only after the user does
		ipc := &IPC{SocketPath: p.ipc.SocketPath, Timeout: permissionPromptTimeout}
		resp, err := ipc.Send(&Request{Type: RequestPermission})
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return p.Permission(), ctx.Err()
	case r := <-done:
		if r.err != nil {
			return p.Permission(), r.err
		}
		perm := types.ParsePermission(r.resp.Permission)
		p.mu.Lock()
		p.permission = perm
		p.mu.Unlock()
		return perm, nil
	}
}

func (p *SocketProvider) Show(n *types.Notification) (Shown, error) {
	if _, err := p.ipc.Send(&Request{Type: RequestShow, Notification: n}); err != nil {
		return nil, err
	}
	tool.DefaultLogger.Infof("[UnixSocket] Notification sent: %s - %s", n.Type, n.Title)
	if n.OnClick != nil {
		p.mu.Lock()
		p.clicks[n.ID] = n.OnClick
		p.mu.Unlock()
	}
	return &socketShown{provider: p, id: n.ID, tag: n.Tag}, nil
}

// Click runs the click action of a notification still on screen. It reports false for
// unknown or already closed notifications.
func (p *SocketProvider) Click(id string) bool {
	p.mu.Lock()
	fn, ok := p.clicks[id]
	delete(p.clicks, id)
	p.mu.Unlock()
	if !ok {
		return false
	}
	tool.DefaultLogger.Debugf("[UnixSocket] Notification clicked: %s", id)
	fn()
	return true
}

func (p *SocketProvider) forget(id string) {
	p.mu.Lock()
	delete(p.clicks, id)
	p.mu.Unlock()
}

type socketShown struct {
	provider *SocketProvider
	id       string
	tag      string
	once     sync.Once
	err      error
}

func (s *socketShown) Close() error {
	s.once.Do(func() {
		s.provider.forget(s.id)
		_, s.err = s.provider.ipc.Send(&Request{ID: s.id, Type: RequestClose, Tag: s.tag})
	})
	return s.err
}

// SocketPlayer plays sounds through the desktop helper.
type SocketPlayer struct {
	ipc *IPC
}

func NewSocketPlayer(socketPath string) *SocketPlayer {
	return &SocketPlayer{ipc: &IPC{SocketPath: socketPath}}
}

func (p *SocketPlayer) Play(sound string, volume float64) error {
	_, err := p.ipc.Send(&Request{Type: RequestPlaySound, Sound: sound, Volume: volume})
	return err
}
