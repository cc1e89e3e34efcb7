package mqttadapter

import (
	"strings"
	"sync"
)

// knownDevices is the ordered, unique set of point names already announced
// for Home Assistant auto-discovery. It is owned by the adapter goroutine,
// but paho's callbacks run on the library's own goroutine, so access is
// still guarded by a mutex (spec.md §5 allows a single mutex around a
// goroutine-owned resource when a parallel implementation needs it).
type knownDevices struct {
	mu    sync.Mutex
	order []string
	set   map[string]bool
}

func newKnownDevices() *knownDevices {
	return &knownDevices{set: make(map[string]bool)}
}

// add records name if not already present, returning true if it was newly
// added (the caller should only publish a discovery config in that case).
func (k *knownDevices) add(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.set[name] {
		return false
	}
	k.set[name] = true
	k.order = append(k.order, name)
	return true
}

// contains reports whether name has already been announced.
func (k *knownDevices) contains(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.set[name]
}

// names returns a copy of the known names in announcement order.
func (k *knownDevices) names() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.order))
	copy(out, k.order)
	return out
}

// joined returns the comma-joined representation mirrored to the retained
// known-devices topic.
func (k *knownDevices) joined() string {
	return strings.Join(k.names(), ",")
}

// clear empties the set, used on an explicit --clean-known-devices CLI flag
// or a controller birth message (spec.md §4.7).
func (k *knownDevices) clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.order = nil
	k.set = make(map[string]bool)
}

// loadRetained replaces the set's contents with the names found in a
// retained known-devices payload, mirroring the original implementation's
// on_message handling that seeds known_topics from the broker's retained
// state on startup instead of starting empty after a restart.
func (k *knownDevices) loadRetained(payload string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.order = nil
	k.set = make(map[string]bool)
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return
	}
	for _, name := range strings.Split(payload, ",") {
		name = strings.TrimSpace(name)
		if name == "" || k.set[name] {
			continue
		}
		k.set[name] = true
		k.order = append(k.order, name)
	}
}
