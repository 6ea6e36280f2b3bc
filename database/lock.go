package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Locker serializes writers in this process that share a key. Keys are taken
// in sorted order so two callers asking for overlapping sets cannot deadlock.
// unlock may be called more than once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// TxLock is a statement run at the start of a write transaction. The lock it
// takes lives on the transaction's own connection and ends with it.
type TxLock struct {
	SQL  string
	Args []interface{}
}

// WriteLocks returns the statements that serialize writers across processes
// for one client and one table. Client is always locked before table. sqlite
// needs none: it has a single writer and the in-process locker covers it.
func WriteLocks(dialect string, clientID uint, tableNumber int, timeout time.Duration) []TxLock {
	var locks []TxLock
	switch dialect {
	case DriverPostgres:
		if timeout > 0 {
			locks = append(locks, TxLock{SQL: fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())})
		}
		for _, key := range sortedKeys([]string{ClientKey(clientID), TableKey(tableNumber)}) {
			locks = append(locks, TxLock{
				SQL:  "SELECT pg_advisory_xact_lock(hashtext(?))",
				Args: []interface{}{"reservations:" + key},
			})
		}
	case DriverMySQL:
		if timeout > 0 {
			secs := int(timeout / time.Second)
			if secs < 1 {
				secs = 1
			}
			locks = append(locks, TxLock{SQL: fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)})
		}
		locks = append(locks,
			TxLock{SQL: "SELECT id FROM clients WHERE id = ? FOR UPDATE", Args: []interface{}{clientID}},
			TxLock{SQL: "SELECT id FROM tables WHERE number = ? FOR UPDATE", Args: []interface{}{tableNumber}},
		)
	}
	return locks
}

func ClientKey(id uint) string { return "client:" + strconv.FormatUint(uint64(id), 10) }

func TableKey(number int) string { return "table:" + strconv.Itoa(number) }

func sortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, k := range sortedKeys(keys) {
		ch := l.slot(k)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
