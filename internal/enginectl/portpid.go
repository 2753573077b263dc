package enginectl

import (
	psnet "github.com/shirou/gopsutil/v3/net"
)

// ResolvePID finds the process currently listening on the given local TCP
// port. The second return is false when nothing is bound or when the OS
// query itself fails; "no process found" is the expected common case and
// is never an error.
func ResolvePID(port int) (int32, bool) {
	if port <= 0 {
		return 0, false
	}
	conns, err := psnet.Connections("tcp")
	if err != nil {
		return 0, false
	}
	for _, conn := range conns {
		if conn.Status != "LISTEN" {
			continue
		}
		if conn.Laddr.Port == uint32(port) && conn.Pid > 0 {
			return conn.Pid, true
		}
	}
	return 0, false
}
