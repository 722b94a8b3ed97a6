// Package snowflake generates the identifiers used for booking requests,
// bookings and notifications. IDs are 63-bit, time-ordered and unique
// across instances as long as each instance runs with its own node ID, so
// rows insert in roughly chronological order without coordinating through
// the database.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch in milliseconds (Nov 04 2010 01:42:54 UTC).
	// Changing it after IDs have been issued breaks ordering.
	Epoch int64 = 1288834974657

	// NodeBits bits reserved for the node ID; 22 bits total are split
	// between node and step
	NodeBits uint8 = 10
	// StepBits bits reserved for the per-millisecond sequence
	StepBits uint8 = 12

	nodeMask  = -1 ^ (-1 << NodeBits)
	stepMask  = -1 ^ (-1 << StepBits)
	timeShift = NodeBits + StepBits
	nodeShift = StepBits
)

// IDGenerator issues snowflake IDs for one node
type IDGenerator struct {
	mu        sync.Mutex
	timestamp int64
	nodeID    int64
	step      int64
}

// NewIDGenerator creates a generator for the given node ID
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMask {
		return nil, errors.New("invalid node ID")
	}
	return &IDGenerator{nodeID: nodeID}, nil
}

// NextID returns the next ID. When the per-millisecond sequence is
// exhausted it spins until the clock advances.
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if g.timestamp == now {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for now <= g.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.step = 0
	}

	g.timestamp = now

	return ((now - Epoch) << timeShift) |
		(g.nodeID << nodeShift) |
		g.step
}

// ParseID splits an ID into its timestamp, node ID and step
func ParseID(id int64) (timestamp int64, nodeID int64, step int64) {
	step = id & stepMask
	nodeID = (id >> nodeShift) & nodeMask
	timestamp = (id >> timeShift) + Epoch
	return
}

// GetTimestamp returns the millisecond timestamp an ID was issued at
func GetTimestamp(id int64) int64 {
	return (id >> timeShift) + Epoch
}

// GetNodeID returns the node that issued an ID
func GetNodeID(id int64) int64 {
	return (id >> nodeShift) & nodeMask
}

// GetStep returns the per-millisecond sequence number of an ID
func GetStep(id int64) int64 {
	return id & stepMask
}
