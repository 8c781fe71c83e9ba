package terminal

// LockSet holds the locks of several terminals, taken all or nothing.
type LockSet struct {
	held []*Terminal
}

// TryLockAll try-locks every terminal. If any lock is busy the ones already
// taken are released and ErrContended is returned. Duplicates and nil
// entries are ignored.
func TryLockAll(terms ...*Terminal) (*LockSet, error) {
	ls := &LockSet{}
	for _, t := range terms {
		if t == nil || ls.Holds(t) {
			continue
		}
		if !t.TryLock() {
			ls.Release()
			return nil, ErrContended
		}
		ls.held = append(ls.held, t)
	}
	return ls, nil
}

// Add try-locks one more terminal. It reports true if the set holds t
// afterwards.
func (ls *LockSet) Add(t *Terminal) bool {
	if t == nil {
		return false
	}
	if ls.Holds(t) {
		return true
	}
	if !t.TryLock() {
		return false
	}
	ls.held = append(ls.held, t)
	return true
}

// Holds reports whether the set holds the lock of t.
func (ls *LockSet) Holds(t *Terminal) bool {
	if ls == nil {
		return false
	}
	for _, h := range ls.held {
		if h == t {
			return true
		}
	}
	return false
}

// Len returns the number of held locks.
func (ls *LockSet) Len() int {
	if ls == nil {
		return 0
	}
	return len(ls.held)
}

// Release unlocks everything in reverse order. Safe to call twice.
func (ls *LockSet) Release() {
	if ls == nil {
		return
	}
	for i := len(ls.held) - 1; i >= 0; i-- {
		ls.held[i].Unlock()
	}
	ls.held = nil
}
