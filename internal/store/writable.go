// Package store は購読可能な状態コンテナを提供する。
package store

import "sync"

// Writable は値を1つ保持し、変更を購読者へ通知するコンテナ。
// Subscribeは現在値を通知し、以降のSetごとに新しい値を通知する。
// 複数のgoroutineから安全に利用できる。
//
// 通知は値の更新順に1つずつ配信する。別のgoroutineが配信中のときは
// キューに積んでその配信者に任せるため、Setが通知完了前に返ることがある。
// 購読者が最後に受け取る値は常にGetの値と一致する。
// 購読者の中からSetを呼んでもよく、その通知は現在の通知の後に配信される。
type Writable[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]func(T)
	order  []int

	pending    []delivery[T]
	delivering bool
}

// delivery は配信待ちの通知。onlyが非nilの場合はその購読者だけに配信する。
type delivery[T any] struct {
	value T
	only  func(T)
}

// NewWritable は初期値を持つWritableを生成する。
func NewWritable[T any](initial T) *Writable[T] {
	return &Writable[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get は現在値を返す。
func (w *Writable[T]) Get() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// Set は値を更新し、全購読者に通知する。
func (w *Writable[T]) Set(v T) {
	w.mu.Lock()
	w.value = v
	w.pending = append(w.pending, delivery[T]{value: v})
	w.deliverLocked()
}

// Update は現在値を元に新しい値を計算して設定する。
func (w *Writable[T]) Update(fn func(T) T) {
	w.mu.Lock()
	v := fn(w.value)
	w.value = v
	w.pending = append(w.pending, delivery[T]{value: v})
	w.deliverLocked()
}

// Subscribe は購読者を登録し、現在値で呼び出す。
// 戻り値の関数を呼ぶと購読を解除する。複数回呼んでも安全。
func (w *Writable[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.order = append(w.order, id)
	w.pending = append(w.pending, delivery[T]{value: w.value, only: fn})
	w.deliverLocked()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs, id)
			for i, oid := range w.order {
				if oid == id {
					w.order = append(w.order[:i], w.order[i+1:]...)
					break
				}
			}
		})
	}
}

// deliverLocked はキューが空になるまで通知を配信し、ロックを解放して返る。
// 呼び出し元はw.muを保持していること。コールバックはロック外で実行する。
func (w *Writable[T]) deliverLocked() {
	if w.delivering {
		w.mu.Unlock()
		return
	}
	w.delivering = true

	for len(w.pending) > 0 {
		d := w.pending[0]
		w.pending = w.pending[1:]

		fns := []func(T){d.only}
		if d.only == nil {
			fns = w.snapshotLocked()
		}
		w.mu.Unlock()
		for _, fn := range fns {
			fn(d.value)
		}
		w.mu.Lock()
	}

	w.delivering = false
	w.mu.Unlock()
}

// snapshotLocked は登録順の購読者一覧を返す。呼び出し元がロックを保持すること。
func (w *Writable[T]) snapshotLocked() []func(T) {
	fns := make([]func(T), 0, len(w.order))
	for _, id := range w.order {
		fns = append(fns, w.subs[id])
	}
	return fns
}
