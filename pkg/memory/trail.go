package memory

// recencyTrail is a fixed-capacity ring of keys, most recent first.
// Pushing onto a full trail overwrites the oldest key.
type recencyTrail struct {
	buf  []string
	head int
	size int
}

func newRecencyTrail(capacity int) *recencyTrail {
	if capacity <= 0 {
		capacity = DefaultTrailCapacity
	}
	return &recencyTrail{buf: make([]string, capacity)}
}

func (t *recencyTrail) pushFront(key string) {
	t.head = (t.head - 1 + len(t.buf)) % len(t.buf)
	t.buf[t.head] = key
	if t.size < len(t.buf) {
		t.size++
	}
}

func (t *recencyTrail) len() int {
	return t.size
}

func (t *recencyTrail) capacity() int {
	return len(t.buf)
}

// at returns the i-th most recent key
func (t *recencyTrail) at(i int) string {
	return t.buf[(t.head+i)%len(t.buf)]
}

// front returns up to n keys, most recent first
func (t *recencyTrail) front(n int) []string {
	if n > t.size {
		n = t.size
	}
	if n <= 0 {
		return []string{}
	}
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = t.at(i)
	}
	return keys
}
