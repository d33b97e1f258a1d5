package utils

import "sync"

// KeyMutex serializes critical sections per string key. The verification
// workflow uses it keyed by KPI id so concurrent verifications of the same
// KPI never race on the authoritative value, while different KPIs proceed
// in parallel.
//
// Mutexes are retained for the life of the process; the key space is
// bounded by the KPI population.
type KeyMutex struct {
	locks sync.Map
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{}
}

// Lock acquires the mutex for key and returns its unlock function.
func (km *KeyMutex) Lock(key string) func() {
	v, _ := km.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
