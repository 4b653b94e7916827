// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package doccache

import (
	"container/list"
	"sync"
)

// entry is one cached lookup result.
type entry struct {
	key string
	doc interface{}
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru struct {
	size      int
	lock      sync.Mutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache.  If it is not present, calls
// the fetch function, and if that succeeds, saves the item and returns
// it.  The fetch runs under the cache lock, so concurrent lookups of a
// cold key do not race to the backend.
func (lru *lru) Get(key string, fetch func() (interface{}, error)) (interface{}, error) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		lru.evictList.MoveToBack(element)
		return element.Value.(entry).doc, nil
	}

	doc, err := fetch()
	if err != nil {
		return doc, err
	}
	lru.add(key, doc)
	return doc, nil
}

// Remove takes an item out of the cache.  It does nothing if that key
// does not exist.
func (lru *lru) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		delete(lru.index, key)
		lru.evictList.Remove(element)
	}
}

// Purge empties the cache.
func (lru *lru) Purge() {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	lru.evictList.Init()
	lru.index = make(map[string]*list.Element)
}

// add is an internal helper, running under the lock, that adds a new
// item to the cache.  The item is known to not already exist.
func (lru *lru) add(key string, doc interface{}) {
	element := lru.evictList.PushBack(entry{key: key, doc: doc})
	lru.index[key] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(entry).key)
		lru.evictList.Remove(head)
	}
}
