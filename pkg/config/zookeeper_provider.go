package config

import (
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// zkSessionTimeout bounds how long a ZooKeeper ensemble member will hold a
// session open without hearing a heartbeat before expiring it.
const zkSessionTimeout = 10 * time.Second

// zookeeperProvider reads a strategy document stored as the data payload
// of a single ZooKeeper znode. It satisfies koanf.Provider (ReadBytes,
// with Read unsupported) and has a Watch method, so Loader can treat it
// like the file and consul backends.
type zookeeperProvider struct {
	conn  *zk.Conn
	znode string
	hosts []string
}

// NewZookeeperProvider dials the given ensemble and binds to znode; the
// connection is established eagerly, so a misconfigured backend fails
// when Loader.Load builds the provider rather than on first read.
func NewZookeeperProvider(hosts []string, znode string) (*zookeeperProvider, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("zookeeper: at least one host is required")
	}
	if znode == "" {
		return nil, fmt.Errorf("zookeeper: znode path is required")
	}

	conn, _, err := zk.Connect(hosts, zkSessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zookeeper: connecting to %v: %w", hosts, err)
	}

	return &zookeeperProvider{conn: conn, znode: znode, hosts: hosts}, nil
}

// ReadBytes fetches the znode's current data payload.
func (p *zookeeperProvider) ReadBytes() ([]byte, error) {
	data, _, err := p.conn.Get(p.znode)
	if err != nil {
		return nil, fmt.Errorf("zookeeper: reading %s: %w", p.znode, err)
	}
	return data, nil
}

// Read is not supported: the znode payload is raw bytes for a parser.
func (p *zookeeperProvider) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("zookeeper: provider does not support Read")
}

// Watch blocks, invoking cb each time the znode's data changes, until the
// node is deleted or the watch is otherwise lost — either of which ends
// the loop. A failed re-arm of the watch is reported to cb rather than
// treated as fatal, since ZooKeeper sessions do recover from transient
// connectivity blips.
func (p *zookeeperProvider) Watch(cb func(event interface{}, err error)) error {
	for {
		data, _, events, err := p.conn.GetW(p.znode)
		if err != nil {
			cb(nil, fmt.Errorf("zookeeper: arming watch on %s: %w", p.znode, err))
			continue
		}

		ev := <-events
		switch ev.Type {
		case zk.EventNodeDataChanged:
			cb(data, nil)
		case zk.EventNodeDeleted:
			cb(nil, fmt.Errorf("zookeeper: %s was deleted", p.znode))
			return nil
		case zk.EventNotWatching:
			cb(nil, fmt.Errorf("zookeeper: lost watch on %s", p.znode))
			return nil
		}
	}
}

// Close releases the ZooKeeper session.
func (p *zookeeperProvider) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
