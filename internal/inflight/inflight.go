// Package inflight はキー単位の二重実行防止ガードを提供する。
package inflight

import "sync"

// Guard はキーごとに同時に1件だけ処理を許可する。
// 実行中のキーに対するTryAcquireは待たずにfalseを返す。
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// New はGuardを生成する。
func New() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// TryAcquire はkeyの実行権を取得する。
// 取得できた場合は解放関数とtrueを返す。解放関数は必ず1回呼ぶこと。
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[key]; busy {
		return nil, false
	}
	g.running[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, key)
			g.mu.Unlock()
		})
	}, true
}

// Len は実行中のキー数を返す。
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
