// Package hotreload pushes browser refreshes during development. A
// fsnotify watcher feeds template and asset changes into a WebSocket
// hub the page script subscribes to. The handlers mount on the web
// router itself, so no extra port or proxy is involved.
package hotreload

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config controls what the watcher looks at.
type Config struct {
	WatchPaths        []string
	IncludeExtensions []string
	ExcludePatterns   []string
	Debounce          time.Duration
}

// DefaultConfig watches the web frontend's template and asset sources.
func DefaultConfig() Config {
	return Config{
		WatchPaths: []string{
			"internal/infrastructure/http/webserver/templates",
			"internal/infrastructure/http/webserver/static",
		},
		IncludeExtensions: []string{".html", ".css", ".js"},
		ExcludePatterns:   []string{".git", "node_modules", ".tmp", "~"},
		Debounce:          100 * time.Millisecond,
	}
}

// reloadMessage is the wire format the page script understands.
type reloadMessage struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	LiveCSS bool   `json:"liveCSS,omitempty"`
}

// LiveReload tracks connected browsers and broadcasts change events.
type LiveReload struct {
	config   Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	watcher  *fsnotify.Watcher

	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan reloadMessage
	shutdown   chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	debounce map[string]*time.Timer
}

// New creates a LiveReload. Call Start to begin watching.
func New(config Config, logger *zap.Logger) (*LiveReload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &LiveReload{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Development-only endpoint.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		watcher:    watcher,
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan reloadMessage, 16),
		shutdown:   make(chan struct{}),
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching and broadcasting until Stop or ctx cancel.
// Watch paths that do not exist are logged and skipped, so a binary
// run outside the source tree still works.
func (lr *LiveReload) Start(ctx context.Context) error {
	for _, path := range lr.config.WatchPaths {
		if err := lr.addWatchPath(path); err != nil {
			lr.logger.Warn("Failed to watch path",
				zap.String("path", path),
				zap.Error(err))
		}
	}

	go lr.runHub(ctx)
	go lr.watchFiles(ctx)

	lr.logger.Info("Live reload active",
		zap.Strings("paths", lr.config.WatchPaths))
	return nil
}

// Stop closes the watcher and disconnects all clients.
func (lr *LiveReload) Stop() error {
	lr.closeOnce.Do(func() { close(lr.shutdown) })
	return lr.watcher.Close()
}

func (lr *LiveReload) addWatchPath(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if lr.isExcluded(path) {
			return filepath.SkipDir
		}
		return lr.watcher.Add(path)
	})
}

func (lr *LiveReload) isExcluded(path string) bool {
	for _, pattern := range lr.config.ExcludePatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

func (lr *LiveReload) shouldReload(path string) bool {
	if lr.isExcluded(path) {
		return false
	}
	ext := filepath.Ext(path)
	for _, allowed := range lr.config.IncludeExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (lr *LiveReload) runHub(ctx context.Context) {
	for {
		select {
		case conn := <-lr.register:
			lr.clients[conn] = true
			lr.logger.Debug("Live reload client connected",
				zap.Int("clients", len(lr.clients)))

		case conn := <-lr.unregister:
			if _, ok := lr.clients[conn]; ok {
				delete(lr.clients, conn)
				conn.Close()
			}

		case msg := <-lr.broadcast:
			for conn := range lr.clients {
				if err := conn.WriteJSON(msg); err != nil {
					delete(lr.clients, conn)
					conn.Close()
				}
			}

		case <-lr.shutdown:
			for conn := range lr.clients {
				conn.Close()
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

func (lr *LiveReload) watchFiles(ctx context.Context) {
	for {
		select {
		case event, ok := <-lr.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !lr.shouldReload(event.Name) {
				continue
			}
			lr.scheduleReload(event.Name)

		case err, ok := <-lr.watcher.Errors:
			if !ok {
				return
			}
			lr.logger.Warn("File watcher error", zap.Error(err))

		case <-lr.shutdown:
			return

		case <-ctx.Done():
			return
		}
	}
}

// scheduleReload coalesces the burst of events editors emit per save.
func (lr *LiveReload) scheduleReload(path string) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if timer, ok := lr.debounce[path]; ok {
		timer.Stop()
	}
	lr.debounce[path] = time.AfterFunc(lr.config.Debounce, func() {
		lr.mu.Lock()
		delete(lr.debounce, path)
		lr.mu.Unlock()
		lr.TriggerReload(path)
	})
}

// TriggerReload notifies all connected browsers about a change.
func (lr *LiveReload) TriggerReload(path string) {
	msg := reloadMessage{
		Command: "reload",
		Path:    path,
		LiveCSS: strings.HasSuffix(path, ".css"),
	}

	select {
	case lr.broadcast <- msg:
		lr.logger.Debug("Reload triggered", zap.String("path", path))
	case <-lr.shutdown:
	default:
		lr.logger.Warn("Reload channel full, dropping event",
			zap.String("path", path))
	}
}

// WebSocketHandler upgrades a browser connection into the hub.
func (lr *LiveReload) WebSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := lr.upgrader.Upgrade(w, r, nil)
		if err != nil {
			lr.logger.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		select {
		case lr.register <- conn:
		case <-lr.shutdown:
			conn.Close()
			return
		}

		if err := conn.WriteJSON(reloadMessage{Command: "hello"}); err != nil {
			lr.drop(conn)
			return
		}

		go func() {
			defer lr.drop(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (lr *LiveReload) drop(conn *websocket.Conn) {
	select {
	case lr.unregister <- conn:
	case <-lr.shutdown:
		conn.Close()
	}
}

// ScriptHandler serves the page-side client. The script connects back
// to the same origin, so it works behind any port or proxy setup.
func (lr *LiveReload) ScriptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(liveReloadScript))
	}
}

const liveReloadScript = `(function () {
  var scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
  var endpoint = scheme + window.location.host + '/livereload';
  var retries = 0;

  function swapStylesheets() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    links.forEach(function (link) {
      var href = link.href.split('?')[0];
      link.href = href + '?reload=' + Date.now();
    });
  }

  function connect() {
    var socket = new WebSocket(endpoint);

    socket.onopen = function () {
      retries = 0;
      console.log('[livereload] connected');
    };

    socket.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.command !== 'reload') {
        return;
      }
      if (msg.liveCSS && msg.path && msg.path.endsWith('.css')) {
        swapStylesheets();
      } else {
        window.location.reload();
      }
    };

    socket.onclose = function () {
      if (retries < 10) {
        retries++;
        setTimeout(connect, 1000);
      }
    };
  }

  connect();
})();
`
