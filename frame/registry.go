// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"sync"
	"weak"

	"github.com/diffeo/go-framestore/document"
)

// Caches for the same stored sample register themselves so that a
// flush or reload through one can reconcile the staged state of the
// others.  Registration holds only weak pointers; a cache the caller
// dropped is collectable and falls out of the registry the next time
// its key is consulted.

type registryKey struct {
	collection string
	sample     document.ID
}

var (
	registryMu sync.Mutex
	registry   = make(map[registryKey][]weak.Pointer[Frames])
)

// register adds f to the registry under its collection and sample id.
// It is a no-op for view caches, caches whose parent has never been
// persisted, and caches already registered.
func (f *Frames) register() {
	if f.registered || f.view != nil {
		return
	}
	sid, backed := f.src.SampleID()
	if !backed {
		return
	}
	key := registryKey{collection: f.src.Collection().Name(), sample: sid}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[key] = append(registry[key], weak.Make(f))
	f.registered = true
}

// peers returns every live registered cache for the same sample,
// including f itself if it is registered.  Dead pointers are pruned
// in passing.
func (f *Frames) peers(sid document.ID) []*Frames {
	coll := f.src.Collection()
	if coll == nil {
		return nil
	}
	key := registryKey{collection: coll.Name(), sample: sid}

	registryMu.Lock()
	defer registryMu.Unlock()
	ptrs := registry[key]
	live := ptrs[:0]
	var peers []*Frames
	for _, ptr := range ptrs {
		if p := ptr.Value(); p != nil {
			live = append(live, ptr)
			peers = append(peers, p)
		}
	}
	switch {
	case len(live) == 0:
		delete(registry, key)
	default:
		registry[key] = live
	}
	return peers
}

// siblings returns every live registered cache for the same sample
// other than f itself.
func (f *Frames) siblings(sid document.ID) []*Frames {
	peers := f.peers(sid)
	out := peers[:0]
	for _, p := range peers {
		if p != f {
			out = append(out, p)
		}
	}
	return out
}
