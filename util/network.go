package util

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// HostAddress resolves this machine's hostname to its first IPv4
// address.  If that fails it returns "0.0.0.0" so the listener still
// binds every interface.
func HostAddress() string {
	name, err := os.Hostname()
	if err != nil {
		return "0.0.0.0"
	}
	return firstIPv4(name)
}

func firstIPv4(host string) string {
	addrs, err := net.LookupIP(host)
	if err != nil {
		return "0.0.0.0"
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4.String()
		}
	}
	return "0.0.0.0"
}

// ResolveAddr builds a host:port string, validating that the host is a
// numeric IP when noDNS is true.
func ResolveAddr(host string, port int, noDNS bool) (string, error) {
	if noDNS && net.ParseIP(host) == nil {
		return "", fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
	}
	return FormatAddr(host, port), nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
