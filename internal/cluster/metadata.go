// Package cluster holds this node's identity and process metadata: the
// pieces MasterElector registers with the coordinator and Registry/metrics
// report alongside their own state.
package cluster

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Version information, set at build time.
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Metadata describes this process: version/build info plus its generated
// identity, independent of whether it currently holds the master lease.
type Metadata struct {
	NodeID    string    `json:"node_id"`
	Hostname  string    `json:"hostname"`
	Version   string    `json:"version"`
	GitCommit string    `json:"commit,omitempty"`
	BuildTime string    `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	StartTime time.Time `json:"start_time"`
}

// Identity is the MasterElector Identity{host, port, eligible} from spec
// §4.2, tagged with this node's uuid for logging/metrics correlation.
type Identity struct {
	NodeID   string
	Host     string
	Port     int
	Eligible bool
}

// Less implements the deterministic total order spec §4.2 elects under:
// the lowest NodeID among eligible candidates wins.
func (id Identity) Less(other Identity) bool {
	return id.NodeID < other.NodeID
}

// Info holds this process's metadata and tracks whether it currently
// holds the master lease, as reported by MasterElector via Registry.
type Info struct {
	mu       sync.RWMutex
	metadata Metadata
	identity Identity
	isMaster bool
}

// NewInfo builds process metadata and this node's election Identity.
func NewInfo(host string, port int, eligible bool) *Info {
	hostname, _ := os.Hostname()
	nodeID := uuid.New().String()

	return &Info{
		metadata: Metadata{
			NodeID:    nodeID,
			Hostname:  hostname,
			Version:   Version,
			GitCommit: GitCommit,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
			StartTime: time.Now(),
		},
		identity: Identity{NodeID: nodeID, Host: host, Port: port, Eligible: eligible},
	}
}

// Metadata returns a copy of this process's metadata.
func (i *Info) Metadata() Metadata {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.metadata
}

// Identity returns this node's election identity.
func (i *Info) Identity() Identity {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.identity
}

// SetMaster records whether this node currently holds the master lease.
// Called by MasterElector's Registry.SetMaster notification path.
func (i *Info) SetMaster(isMaster bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.isMaster = isMaster
}

// IsMaster reports whether this node currently holds the master lease.
func (i *Info) IsMaster() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.isMaster
}

// Uptime returns how long this process has been running.
func (i *Info) Uptime() time.Duration {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return time.Since(i.metadata.StartTime)
}
