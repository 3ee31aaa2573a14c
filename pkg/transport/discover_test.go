package transport

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/labelkit/pkg/errors"
)

func TestHosts(t *testing.T) {
	tests := []struct {
		prefix      string
		n           int
		first, last string
	}{
		{"192.168.1.0/24", 254, "192.168.1.1", "192.168.1.254"},
		{"192.168.1.77/24", 254, "192.168.1.1", "192.168.1.254"},
		{"10.0.0.0/30", 2, "10.0.0.1", "10.0.0.2"},
		{"10.0.0.8/31", 2, "10.0.0.8", "10.0.0.9"},
		{"10.0.0.9/32", 1, "10.0.0.9", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			hosts := Hosts(netip.MustParsePrefix(tt.prefix))
			if len(hosts) != tt.n {
				t.Fatalf("len = %d, want %d", len(hosts), tt.n)
			}
			if hosts[0].String() != tt.first || hosts[len(hosts)-1].String() != tt.last {
				t.Errorf("range = %s..%s, want %s..%s", hosts[0], hosts[len(hosts)-1], tt.first, tt.last)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if !Probe(context.Background(), "127.0.0.1", port, time.Second) {
		t.Error("Probe on open port = false")
	}
	ln.Close()
	if Probe(context.Background(), "127.0.0.1", port, time.Second) {
		t.Error("Probe on closed port = true")
	}
}

func TestDiscover(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	var calls atomic.Int32
	found, err := Discover(context.Background(), "127.0.0.0/30", DiscoverOptions{
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Timeout: 200 * time.Millisecond,
		Workers: 2,
		OnFound: func(netip.Addr) { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 1 || found[0] != netip.MustParseAddr("127.0.0.1") {
		t.Errorf("found = %v, want [127.0.0.1]", found)
	}
	if calls.Load() != 1 {
		t.Errorf("OnFound calls = %d, want 1", calls.Load())
	}
}

func TestDiscoverRejects(t *testing.T) {
	for _, subnet := range []string{"", "192.168.1.1", "10.0.0.0/8", "fe80::/120", "nonsense/24"} {
		if _, err := Discover(context.Background(), subnet, DiscoverOptions{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("Discover(%q) err = %v, want %s", subnet, err, errors.ErrCodeInvalidInput)
		}
	}
}

func TestDiscoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Discover(ctx, "192.0.2.0/24", DiscoverOptions{}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
