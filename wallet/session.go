package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/microgig/microgig/eventbus"
	"github.com/microgig/microgig/pkg/cerr"
)

const DefaultRefreshInterval = 10 * time.Second

// BalanceSource resolves the native balance of an address. Implemented by
// ledger.Client.
type BalanceSource interface {
	Balance(ctx context.Context, address string) string
}

// Session holds the connected address and a polled balance. It is
// ephemeral: nothing is persisted, a reload rebuilds it from a fresh
// Connect. The balance refresh loop runs while connected and is disarmed
// on Disconnect so it never operates on a stale or absent address.
type Session struct {
	ext      Extension
	balances BalanceSource
	bus      *eventbus.Bus
	interval time.Duration

	mu      sync.Mutex
	address string
	balance string
	stop    chan struct{}
	wg      *conc.WaitGroup
}

func NewSession(ext Extension, balances BalanceSource, bus *eventbus.Bus, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Session{
		ext:      ext,
		balances: balances,
		bus:      bus,
		interval: interval,
	}
}

// Connect checks extension availability, requests access and resolves the
// active address, then arms the refresh loop. A missing extension is
// reported as Unavailable with guidance; a user refusal as Declined.
func (s *Session) Connect(ctx context.Context) (string, error) {
	if !s.ext.Available(ctx) {
		return "", cerr.NewError(cerr.Unavailable, "wallet extension not installed, install it to continue", nil)
	}
	if err := s.ext.RequestAccess(ctx); err != nil {
		if errors.Is(err, ErrDeclined) {
			return "", cerr.NewError(cerr.Declined, "connection declined by user", err)
		}
		return "", cerr.NewError(cerr.Internal, "wallet access request failed", err)
	}
	address, err := s.resolveAddress(ctx)
	if err != nil {
		return "", err
	}

	s.Disconnect()

	s.mu.Lock()
	s.address = address
	s.balance = "0"
	stop := make(chan struct{})
	s.stop = stop
	s.wg = conc.NewWaitGroup()
	s.wg.Go(func() { s.refreshLoop(stop) })
	s.mu.Unlock()

	s.publish(eventbus.TypeWalletConnected, address, nil)
	s.RefreshBalance(ctx)
	slog.InfoContext(ctx, "wallet connected", "address", address)
	return address, nil
}

// resolveAddress tries the extension's accessors newest-first, skipping
// the ones this extension version does not support.
func (s *Session) resolveAddress(ctx context.Context) (string, error) {
	for _, probe := range s.ext.AddressProbes() {
		address, err := probe.Resolve(ctx)
		if err != nil {
			if errors.Is(err, ErrUnsupported) {
				slog.DebugContext(ctx, "address accessor unsupported", "probe", probe.Name)
				continue
			}
			if errors.Is(err, ErrDeclined) {
				return "", cerr.NewError(cerr.Declined, "connection declined by user", err)
			}
			return "", cerr.NewError(cerr.Internal, fmt.Sprintf("address lookup via %s failed", probe.Name), err)
		}
		if address != "" {
			return address, nil
		}
	}
	return "", cerr.NewError(cerr.Unavailable, "wallet returned no address", nil)
}

// Disconnect clears the held address locally and disarms the refresh loop.
// There is no remote revocation; the extension keeps its own grant.
func (s *Session) Disconnect() {
	s.mu.Lock()
	address := s.address
	s.address = ""
	s.balance = ""
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	wg := s.wg
	s.wg = nil
	s.mu.Unlock()

	if wg != nil {
		wg.Wait()
	}
	if address != "" {
		s.publish(eventbus.TypeWalletDisconnect, address, nil)
		slog.Info("wallet disconnected", "address", address)
	}
}

func (s *Session) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RefreshBalance(context.Background())
		}
	}
}

// RefreshBalance re-fetches the balance for the connected address. A
// result arriving after a disconnect or reconnect is discarded.
func (s *Session) RefreshBalance(ctx context.Context) string {
	s.mu.Lock()
	address := s.address
	s.mu.Unlock()
	if address == "" {
		return ""
	}

	balance := s.balances.Balance(ctx, address)

	s.mu.Lock()
	if s.address != address {
		s.mu.Unlock()
		return balance
	}
	s.balance = balance
	s.mu.Unlock()

	s.publish(eventbus.TypeBalanceRefreshed, address, map[string]string{"balance": balance})
	return balance
}

// Address returns the connected address, or "" when disconnected.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *Session) Connected() bool {
	return s.Address() != ""
}

// Balance returns the last fetched balance, or "" when disconnected.
func (s *Session) Balance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Session) publish(eventType eventbus.Type, address string, metadata map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.PublishNew(eventType, address, metadata)
}
