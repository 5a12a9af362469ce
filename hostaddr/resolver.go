// Package hostaddr works out where the Ollama server lives.
package hostaddr

import (
	"fmt"
	"net"
	"strings"

	"github.com/apex/log"
)

// Loopback is returned when no usable interface address exists
const Loopback = "127.0.0.1"

// Interface is the part of a network interface the resolver looks at
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.Addr
}

// Lister enumerates network interfaces
type Lister func() ([]Interface, error)

// SystemInterfaces lists the host's interfaces via the net package
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	result := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			log.WithError(err).WithField("interface", iface.Name).Debug("skipping interface")
			continue
		}
		result = append(result, Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			Addrs:    addrs,
		})
	}
	return result, nil
}

// LocalIPv4 returns the first non-loopback IPv4 address, or Loopback
func LocalIPv4(list Lister) string {
	ifaces, err := list()
	if err != nil {
		log.WithError(err).Warn("falling back to loopback address")
		return Loopback
	}

	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}
		for _, addr := range iface.Addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return Loopback
}

// BaseURL returns override verbatim when set, else http://<local IPv4>
func BaseURL(override string, list Lister) string {
	if override != "" {
		return override
	}
	return "http://" + LocalIPv4(list)
}

// Endpoint is BaseURL with the Ollama port appended to a derived address.
// An override already names its own port and is left alone.
func Endpoint(override string, port int, list Lister) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf("%s:%d", strings.TrimSuffix(BaseURL("", list), "/"), port)
}
