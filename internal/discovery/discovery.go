// Package discovery advertises and enumerates game sessions on the local
// network. A hosting client broadcasts a small JSON datagram on a fixed UDP
// port; browsing clients listen on the same port and age entries out when
// the host stops announcing.
package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/lanchess/internal/obslog"
)

// Descriptor identifies a discoverable session.
type Descriptor struct {
	SessionID  string `json:"session_id"`
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
	HostColor  string `json:"host_color"`
	Addr       string `json:"addr"` // authority base address, host:port
	Local      bool   `json:"-"`
}

// HostURL returns the HTTP base URL for the session's authority.
func (d Descriptor) HostURL() string { return "http://" + d.Addr }

// LocalIP returns the machine's LAN-facing address. It never dials out; the
// connect on a UDP socket only resolves the route.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// Announcer periodically broadcasts a session descriptor.
type Announcer struct {
	target   string
	desc     Descriptor
	interval time.Duration

	conn     net.PacketConn
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewAnnouncer broadcasts desc to target ("255.255.255.255:<port>" in
// production; tests point it at a loopback listener).
func NewAnnouncer(target string, desc Descriptor, interval time.Duration) *Announcer {
	return &Announcer{
		target:   target,
		desc:     desc,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   obslog.L(),
	}
}

// Start begins announcing. The first datagram goes out immediately.
func (a *Announcer) Start() error {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return fmt.Errorf("open announce socket: %w", err)
	}
	addr, err := net.ResolveUDPAddr("udp4", a.target)
	if err != nil {
		conn.Close()
		return fmt.Errorf("resolve announce target: %w", err)
	}
	payload, err := json.Marshal(a.desc)
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	a.conn = conn

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for {
			if _, err := conn.WriteTo(payload, addr); err != nil {
				a.logger.Warn("announce_write_error", zap.Error(err))
			}
			select {
			case <-a.stopCh:
				return
			case <-t.C:
			}
		}
	}()
	a.logger.Info("announce_start",
		zap.String("session_id", a.desc.SessionID),
		zap.String("addr", a.desc.Addr),
	)
	return nil
}

// Stop ends the announcements. The session simply ages out on peers.
func (a *Announcer) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	if a.conn != nil {
		a.conn.Close()
	}
	a.wg.Wait()
}

type peerEntry struct {
	desc     Descriptor
	lastSeen time.Time
}

// Browser listens for announcements and answers session listings. Entries
// not refreshed within the TTL are treated as expired; an unreachable host
// therefore disappears from the listing on its own.
type Browser struct {
	conn net.PacketConn
	ttl  time.Duration

	mu      sync.Mutex
	peers   map[string]peerEntry // keyed by instance id
	localID string
	local   *Descriptor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewBrowser listens on the discovery port. Port 0 picks an ephemeral port
// (tests); production passes the fixed discovery port.
func NewBrowser(port int, ttl time.Duration) (*Browser, error) {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	return &Browser{
		conn:   conn,
		ttl:    ttl,
		peers:  make(map[string]peerEntry),
		stopCh: make(chan struct{}),
		logger: obslog.L(),
	}, nil
}

// Port returns the bound discovery port.
func (b *Browser) Port() int {
	if addr, ok := b.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

// SetLocal marks our own hosted session so broadcast loopback is reported
// under the local slot, not as a peer.
func (b *Browser) SetLocal(desc *Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local = desc
	b.localID = ""
	if desc != nil {
		b.localID = desc.InstanceID
	}
}

// Start begins collecting announcements.
func (b *Browser) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		buf := make([]byte, 2048)
		for {
			n, _, err := b.conn.ReadFrom(buf)
			if err != nil {
				select {
				case <-b.stopCh:
					return
				default:
				}
				b.logger.Warn("discovery_read_error", zap.Error(err))
				return
			}
			var desc Descriptor
			if err := json.Unmarshal(buf[:n], &desc); err != nil {
				b.logger.Debug("discovery_bad_datagram", zap.Error(err))
				continue
			}
			if desc.SessionID == "" || desc.InstanceID == "" {
				continue
			}
			b.mu.Lock()
			if desc.InstanceID != b.localID {
				b.peers[desc.InstanceID] = peerEntry{desc: desc, lastSeen: time.Now()}
			}
			b.mu.Unlock()
		}
	}()
}

// Stop closes the listener.
func (b *Browser) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.conn.Close()
	b.wg.Wait()
}

// Sessions returns the locally hosted session (if any) and the live peers.
func (b *Browser) Sessions() (*Descriptor, []Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := time.Now().Add(-b.ttl)
	var others []Descriptor
	for id, entry := range b.peers {
		if entry.lastSeen.Before(cutoff) {
			delete(b.peers, id)
			continue
		}
		others = append(others, entry.desc)
	}
	sort.Slice(others, func(i, j int) bool { return others[i].SessionID < others[j].SessionID })
	var local *Descriptor
	if b.local != nil {
		cp := *b.local
		cp.Local = true
		local = &cp
	}
	return local, others
}
