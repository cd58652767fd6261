package main

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pypae/KMP-SAM/segment"
)

var idCounter atomic.Int64

// generateID 生成基于时间戳的ID，计数器后缀保证同一纳秒内也不重复
func generateID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + strconv.FormatInt(idCounter.Add(1), 10)
}

// sessionEntry 单个会话、它的原图和串行化锁。
// 引擎要求同一会话的操作串行执行，锁在这一层兜底。
type sessionEntry struct {
	mu       sync.Mutex
	session  *segment.Session
	image    *segment.ImageBuffer
	lastUsed time.Time
}

// sessionStore 按 ID 管理会话，闲置超时后回收
type sessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	engine  *segment.Engine
	ttl     time.Duration
}

func newSessionStore(engine *segment.Engine, ttl time.Duration) *sessionStore {
	return &sessionStore{
		entries: make(map[string]*sessionEntry),
		engine:  engine,
		ttl:     ttl,
	}
}

// create 新建会话并返回 ID
func (s *sessionStore) create() string {
	id := generateID()
	s.mu.Lock()
	s.entries[id] = &sessionEntry{
		session:  s.engine.NewSession(),
		lastUsed: time.Now(),
	}
	s.mu.Unlock()
	return id
}

// acquire 取出会话并上锁，用完必须调用 release
func (s *sessionStore) acquire(id string) (*sessionEntry, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	e.lastUsed = time.Now()
	return e, true
}

func (e *sessionEntry) release() {
	e.mu.Unlock()
}

// remove 删除会话，等正在执行的请求结束后释放特征缓存
func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.session.ClearImage()
		e.image = nil
		e.mu.Unlock()
	}
	return ok
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanupLoop 定时回收闲置超时的会话
func (s *sessionStore) cleanupLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

func (s *sessionStore) evictExpired(now time.Time) {
	s.mu.Lock()
	var expired []*sessionEntry
	for id, e := range s.entries {
		if now.Sub(e.lastUsed) > s.ttl {
			expired = append(expired, e)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		e.mu.Lock()
		e.session.ClearImage()
		e.image = nil
		e.mu.Unlock()
	}
}
