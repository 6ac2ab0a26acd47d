// Package discover locates mcpd devices on the local network. Devices
// advertise an _mcp._tcp service over mDNS with TXT records for the endpoint
// path and protocol version.
package discover

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/mcpd/mcpd-bridge/internal/logx"
)

// ServiceType is the well-known mDNS service type mcpd advertises.
const ServiceType = "_mcp._tcp"

const mdnsDomain = "local."

// Service is one advertisement seen on the network.
type Service struct {
	Instance string
	Host     string
	Port     int
	Path     string // TXT "path", empty when not advertised
	Version  string // TXT "version", empty when not advertised
}

// Listener receives service lifecycle events during a browse. The underlying
// resolver only surfaces announcements, so RemoveService is never driven by
// Browse; it exists so listeners keep the full add/remove/update shape.
type Listener interface {
	AddService(Service)
	RemoveService(Service)
	UpdateService(Service)
}

// Browse watches for ServiceType advertisements until ctx is done,
// translating them into listener calls: the first sighting of an instance is
// an add, later sightings are updates. The resolver's listening sockets are
// released when ctx ends, on every path.
func Browse(ctx context.Context, l Listener) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, mdnsDomain, entries); err != nil {
		return fmt.Errorf("mdns browse: %w", err)
	}

	seen := map[string]bool{}
	for entry := range entries {
		svc := fromEntry(entry)
		if seen[svc.Instance] {
			l.UpdateService(svc)
			continue
		}
		seen[svc.Instance] = true
		logx.Log.Info().Str("instance", svc.Instance).Str("host", svc.Host).Int("port", svc.Port).Msg("discovered")
		l.AddService(svc)
	}
	return nil
}

// fromEntry converts a resolver entry, preferring an IPv4 address and
// falling back to the advertised hostname.
func fromEntry(e *zeroconf.ServiceEntry) Service {
	svc := Service{
		Instance: e.Instance,
		Host:     strings.TrimSuffix(e.HostName, "."),
		Port:     e.Port,
	}
	if len(e.AddrIPv4) > 0 {
		svc.Host = e.AddrIPv4[0].String()
	} else if len(e.AddrIPv6) > 0 {
		svc.Host = e.AddrIPv6[0].String()
	}
	for _, txt := range e.Text {
		key, value, found := strings.Cut(txt, "=")
		if !found {
			continue
		}
		switch key {
		case "path":
			svc.Path = value
		case "version":
			svc.Version = value
		}
	}
	return svc
}

// firstMatch records the first advertisement and ignores everything after.
type firstMatch struct {
	mu  sync.Mutex
	svc *Service
}

func (f *firstMatch) AddService(s Service) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.svc == nil {
		f.svc = &s
	}
}

func (f *firstMatch) RemoveService(Service) {}
func (f *firstMatch) UpdateService(Service) {}

func (f *firstMatch) get() *Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.svc
}

type browseFunc func(context.Context, Listener) error

// First browses for up to timeout and returns the first responder, polling
// at the given granularity. It returns an error when the browse itself fails
// or when nothing answered within the bound; the caller must not proceed
// without an endpoint.
func First(ctx context.Context, timeout, poll time.Duration) (*Service, error) {
	return first(ctx, Browse, timeout, poll)
}

func first(ctx context.Context, browse browseFunc, timeout, poll time.Duration) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f := &firstMatch{}
	done := make(chan error, 1)
	go func() {
		done <- browse(ctx, f)
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if svc := f.get(); svc != nil {
				cancel()
				return svc, nil
			}
		case err := <-done:
			if svc := f.get(); svc != nil {
				return svc, nil
			}
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("no %s service found within %s", ServiceType, timeout)
		}
	}
}
