package transport

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/labelkit/pkg/errors"
)

// Discovery defaults.
const (
	DefaultProbeTimeout = 300 * time.Millisecond
	DefaultScanWorkers  = 50

	// minPrefixBits bounds a scan to at most 1024 addresses.
	minPrefixBits = 22
)

// Probe reports whether something accepts TCP connections on host:port
// within timeout. The connection is closed immediately; nothing is written.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DiscoverOptions tunes a subnet scan.
type DiscoverOptions struct {
	Port    int           // default 9100
	Timeout time.Duration // per-address probe timeout, default 300ms
	Workers int           // concurrent probes, default 50

	// OnFound, if set, is called for every responding address as soon as it
	// is found. Calls may come from several goroutines at once.
	OnFound func(addr netip.Addr)
}

// Discover probes every host address in subnet (CIDR notation, IPv4, at
// most a /22) and returns the addresses with an open printer port, sorted.
// A cancelled ctx stops the scan and returns what was found so far together
// with ctx.Err().
func Discover(ctx context.Context, subnet string, opts DiscoverOptions) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, errors.Validation("invalid subnet %q: expected CIDR such as 192.168.1.0/24", subnet)
	}
	if !prefix.Addr().Is4() || prefix.Bits() < minPrefixBits {
		return nil, errors.Validation("subnet %s: only IPv4 networks of /%d or smaller can be scanned", subnet, minPrefixBits)
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if err := errors.ValidatePort(opts.Port); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultScanWorkers
	}

	var (
		mu    sync.Mutex
		found []netip.Addr
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, addr := range Hosts(prefix) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !Probe(gctx, addr.String(), opts.Port, opts.Timeout) {
				return nil
			}
			mu.Lock()
			found = append(found, addr)
			mu.Unlock()
			if opts.OnFound != nil {
				opts.OnFound(addr)
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(found, func(a, b netip.Addr) int { return a.Compare(b) })
	return found, ctx.Err()
}

// Hosts lists the usable host addresses of an IPv4 prefix, excluding the
// network and broadcast addresses when the prefix has them.
func Hosts(prefix netip.Prefix) []netip.Addr {
	prefix = prefix.Masked()
	var out []netip.Addr
	for a := prefix.Addr(); prefix.Contains(a); a = a.Next() {
		out = append(out, a)
	}
	if prefix.Bits() <= 30 && len(out) > 2 {
		out = out[1 : len(out)-1]
	}
	return out
}

// LocalSubnet returns the /24 network of the first non-loopback IPv4
// interface address, the usual home of label printers on a shop LAN.
func LocalSubnet() (netip.Prefix, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Prefix{}, errors.Wrap(errors.ErrCodeInternal, err, "list interface addresses")
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil {
			continue
		}
		addr := netip.AddrFrom4([4]byte(ip4))
		return netip.PrefixFrom(addr, 24).Masked(), nil
	}
	return netip.Prefix{}, errors.New(errors.ErrCodeNotFound, "no local IPv4 address found")
}
