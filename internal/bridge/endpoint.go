package bridge

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is the fixed target for every outbound request during one process
// run. It is resolved once at startup, directly from flags or via mDNS
// discovery, and never changes afterwards.
type Endpoint struct {
	Host string
	Port int
	Path string
}

// URL renders the endpoint as the POST target. mcpd devices speak plain HTTP
// on the local network.
func (e Endpoint) URL() string {
	hostport := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	return fmt.Sprintf("http://%s%s", hostport, e.Path)
}
