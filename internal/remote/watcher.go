package remote

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Watcher subscribes to the backend's per-user change feed and invokes a
// callback whenever the collection changed on another device. It reconnects
// with a flat delay until stopped; the feed is advisory, a missed event only
// delays the next pull.
type Watcher struct {
	baseURL  string
	token    TokenSource
	onChange func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(baseURL string, token TokenSource, onChange func()) *Watcher {
	return &Watcher{baseURL: baseURL, token: token, onChange: onChange}
}

// Start launches the subscription loop. Calling Start twice restarts it.
func (w *Watcher) Start() {
	w.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		for {
			if ctx.Err() != nil {
				return
			}
			if err := w.listen(ctx); err != nil && ctx.Err() == nil {
				log.Printf("remote: change feed disconnected: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

// Stop tears the subscription down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	tok := w.token()
	if tok == "" {
		return nil
	}
	url := wsURL(w.baseURL) + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type == "collectionChanged" && w.onChange != nil {
			w.onChange()
		}
	}
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
