package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"stratlab/internal/logger"
)

// ChangeListener 接收配置热更新后的新快照。
type ChangeListener func(*Config)

// Watcher 监听配置文件变更并重新加载。加载失败时保留旧配置，
// 只记录错误，不向监听方推送。
type Watcher struct {
	path string

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// Watch 加载配置并开始监听文件变更。
func Watch(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, current: cfg}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		next, err := Load(w.path)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		w.mu.Lock()
		w.current = next
		listeners := append([]ChangeListener(nil), w.listeners...)
		w.mu.Unlock()
		logger.Infof("config reloaded: %s", evt.Name)
		for _, fn := range listeners {
			fn(next)
		}
	})
	v.WatchConfig()
	return w, nil
}

// Current 返回最新配置。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe 注册监听器，并立即收到一次当前快照。
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	cfg := w.current
	w.mu.Unlock()
	fn(cfg)
}
