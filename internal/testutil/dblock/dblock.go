// Package dblock serializes integration tests from different packages that
// truncate the same database. go test runs packages in parallel processes, so
// the lock is a loopback listener rather than a mutex.
package dblock

import (
	"fmt"
	"hash/fnv"
	"net"
	"time"
)

const (
	basePort  = 45432
	portRange = 512
)

// Acquire blocks until this process holds the lock for databaseURL and returns
// its release func. Tests pointed at different databases do not contend.
func Acquire(databaseURL string) func() {
	addr := lockAddr(databaseURL)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func lockAddr(databaseURL string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(databaseURL))
	return fmt.Sprintf("127.0.0.1:%d", basePort+int(h.Sum32()%portRange))
}
