package ids

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	nodeBits = 10
	stepBits = 12
	maxNode  = 1<<nodeBits - 1
	stepMask = 1<<stepBits - 1
)

// epoch is 2020-01-01T00:00:00Z in milliseconds.
const epoch int64 = 1577836800000

// Node hands out 63-bit ids: 41 bits of milliseconds since epoch, 10 bits of
// node id, 12 bits of per-millisecond step.
type Node struct {
	mu     sync.Mutex
	id     int64
	lastMS int64
	step   int64
}

// NewNode clamps id into 0~1023; anything outside falls back to 1.
func NewNode(id int64) *Node {
	if id < 0 || id > maxNode {
		id = 1
	}
	return &Node{id: id}
}

func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < n.lastMS {
		// clock moved backwards; reuse the last millisecond
		now = n.lastMS
	}
	if now == n.lastMS {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.lastMS {
				time.Sleep(100 * time.Microsecond)
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.step = 0
	}
	n.lastMS = now
	return (now-epoch)<<(nodeBits+stepBits) | n.id<<stepBits | n.step
}

var (
	defaultMu   sync.RWMutex
	defaultNode = NewNode(1)
)

// SetNodeID replaces the process-wide node. Call it once at boot.
func SetNodeID(id int64) {
	defaultMu.Lock()
	defaultNode = NewNode(id)
	defaultMu.Unlock()
}

func Generate() int64 {
	defaultMu.RLock()
	n := defaultNode
	defaultMu.RUnlock()
	return n.Next()
}

// MessageID is the id attached to every published fragment; consumers dedupe on it.
func MessageID() string {
	return strconv.FormatInt(Generate(), 10)
}

// ClientID identifies a meeting participant.
func ClientID() string {
	return uuid.NewString()
}
