// Package scanner discovers devices on the local network by probing TCP
// ports, with no external binaries (nmap, ping) required.
package scanner

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// probePorts are checked on each candidate host.
var probePorts = []int{22, 80, 8080}

const (
	maxConcurrent = 64
	probeTimeout  = 500 * time.Millisecond
	// agentPort is the port a running Ajime agent's diagnostic server
	// listens on; a host with it open is reported as HasAgent.
	agentPort = 8080
)

// DiscoveredDevice is a host that answered at least one probed port.
type DiscoveredDevice struct {
	IP        string `json:"ip"`
	OpenPorts []int  `json:"open_ports"`
	HasAgent  bool   `json:"has_agent"`
}

// ScanSubnet probes every host in cidr (e.g. "192.168.1.0/24") concurrently,
// bounded by a semaphore, and returns the hosts that responded on at least
// one probed port. The scan is best-effort: unreachable hosts are silently
// skipped rather than reported as errors.
func ScanSubnet(ctx context.Context, cidr string) []DiscoveredDevice {
	log := alog.WithComponent("scanner")

	hosts, err := hostsInCIDR(cidr)
	if err != nil {
		log.Warn().Err(err).Str("cidr", cidr).Msg("invalid CIDR")
		return nil
	}
	log.Info().Int("hosts", len(hosts)).Str("cidr", cidr).Msg("scanning subnet")

	sem := make(chan struct{}, maxConcurrent)
	results := make(chan DiscoveredDevice, len(hosts))
	var wg sync.WaitGroup

	for _, ip := range hosts {
		ip := ip
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			open := probeHost(ctx, ip)
			if len(open) == 0 {
				return
			}
			results <- DiscoveredDevice{
				IP:        ip,
				OpenPorts: open,
				HasAgent:  contains(open, agentPort),
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	devices := make([]DiscoveredDevice, 0, len(hosts))
	for d := range results {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].IP < devices[j].IP })

	log.Info().Int("found", len(devices)).Msg("scan complete")
	return devices
}

func probeHost(ctx context.Context, ip string) []int {
	var open []int
	dialer := net.Dialer{Timeout: probeTimeout}
	for _, port := range probePorts {
		addr := net.JoinHostPort(ip, strconv.Itoa(port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		conn.Close()
		open = append(open, port)
	}
	return open
}

// hostsInCIDR enumerates every usable host address in cidr, excluding the
// network and broadcast addresses for IPv4 networks wider than /31.
func hostsInCIDR(cidr string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, &net.AddrError{Err: "scanner only supports IPv4 ranges", Addr: cidr}
	}

	var hosts []string
	for cur := cloneIP(ipNet.IP); ipNet.Contains(cur); incIP(cur) {
		hosts = append(hosts, cur.String())
	}

	ones, bits := ipNet.Mask.Size()
	if bits-ones >= 2 && len(hosts) >= 2 {
		hosts = hosts[1 : len(hosts)-1] // drop network and broadcast addresses
	}
	return hosts, nil
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

func contains(ports []int, target int) bool {
	for _, p := range ports {
		if p == target {
			return true
		}
	}
	return false
}

