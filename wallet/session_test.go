package wallet_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microgig/microgig/eventbus"
	"github.com/microgig/microgig/pkg/cerr"
	"github.com/microgig/microgig/wallet"
)

type fakeExtension struct {
	installed     bool
	accessErr     error
	probes        []wallet.AddressProbe
	signErr       error
	signedPayload string
}

func (f *fakeExtension) Available(context.Context) bool       { return f.installed }
func (f *fakeExtension) RequestAccess(context.Context) error  { return f.accessErr }
func (f *fakeExtension) AddressProbes() []wallet.AddressProbe { return f.probes }
func (f *fakeExtension) SignTransaction(context.Context, string, string) (string, error) {
	return f.signedPayload, f.signErr
}

func staticProbe(name, address string, err error) wallet.AddressProbe {
	return wallet.AddressProbe{
		Name: name,
		Resolve: func(context.Context) (string, error) {
			return address, err
		},
	}
}

type fakeBalances struct {
	balance string
	calls   atomic.Int64
}

func (f *fakeBalances) Balance(context.Context, string) string {
	f.calls.Add(1)
	return f.balance
}

func TestConnectNotInstalled(t *testing.T) {
	session := wallet.NewSession(&fakeExtension{installed: false}, &fakeBalances{}, nil, time.Hour)

	_, err := session.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable), "got %v", err)
	assert.False(t, session.Connected())
}

func TestConnectAccessDeclined(t *testing.T) {
	ext := &fakeExtension{installed: true, accessErr: wallet.ErrDeclined}
	session := wallet.NewSession(ext, &fakeBalances{}, nil, time.Hour)

	_, err := session.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Declined), "got %v", err)
}

func TestConnectProbeFallback(t *testing.T) {
	ext := &fakeExtension{
		installed: true,
		probes: []wallet.AddressProbe{
			staticProbe("getAddress", "", wallet.ErrUnsupported),
			staticProbe("getPublicKey", "GADDR", nil),
		},
	}
	balances := &fakeBalances{balance: "42.0000000"}
	session := wallet.NewSession(ext, balances, nil, time.Hour)

	address, err := session.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GADDR", address)
	assert.Equal(t, "GADDR", session.Address())
	assert.Equal(t, "42.0000000", session.Balance())
	assert.EqualValues(t, 1, balances.calls.Load(), "connect refreshes the balance exactly once")

	session.Disconnect()
}

func TestConnectProbeDeclined(t *testing.T) {
	ext := &fakeExtension{
		installed: true,
		probes: []wallet.AddressProbe{
			staticProbe("getAddress", "", wallet.ErrDeclined),
		},
	}
	session := wallet.NewSession(ext, &fakeBalances{}, nil, time.Hour)

	_, err := session.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Declined), "got %v", err)
}

func TestConnectNoUsableProbe(t *testing.T) {
	ext := &fakeExtension{
		installed: true,
		probes: []wallet.AddressProbe{
			staticProbe("getAddress", "", wallet.ErrUnsupported),
			staticProbe("getPublicKey", "", wallet.ErrUnsupported),
		},
	}
	session := wallet.NewSession(ext, &fakeBalances{}, nil, time.Hour)

	_, err := session.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable), "got %v", err)
}

func TestRefreshLoopRunsWhileConnected(t *testing.T) {
	ext := &fakeExtension{
		installed: true,
		probes:    []wallet.AddressProbe{staticProbe("getAddress", "GADDR", nil)},
	}
	balances := &fakeBalances{balance: "1.0000000"}
	session := wallet.NewSession(ext, balances, nil, 10*time.Millisecond)

	_, err := session.Connect(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return balances.calls.Load() >= 3
	}, 3*time.Second, 5*time.Millisecond, "refresh loop did not tick")

	session.Disconnect()
	assert.False(t, session.Connected())
	assert.Empty(t, session.Balance())

	// The loop is disarmed: no further fetches after disconnect.
	settled := balances.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, balances.calls.Load())
}

func TestEventsPublished(t *testing.T) {
	ext := &fakeExtension{
		installed: true,
		probes:    []wallet.AddressProbe{staticProbe("getAddress", "GADDR", nil)},
	}
	bus := eventbus.New()
	_, events := bus.Subscribe(16)
	session := wallet.NewSession(ext, &fakeBalances{balance: "7.0000000"}, bus, time.Hour)

	_, err := session.Connect(context.Background())
	require.NoError(t, err)
	session.Disconnect()

	var types []eventbus.Type
	deadline := time.After(time.Second)
	for len(types) < 3 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	assert.Equal(t, []eventbus.Type{
		eventbus.TypeWalletConnected,
		eventbus.TypeBalanceRefreshed,
		eventbus.TypeWalletDisconnect,
	}, types)
}
