package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_SignalsOnlyMatchingVault(t *testing.T) {
	n := NewNotifier()

	chA, cancelA := n.Subscribe("vault-a")
	defer cancelA()
	chB, cancelB := n.Subscribe("vault-b")
	defer cancelB()

	n.Notify("vault-a")

	select {
	case <-chA:
	default:
		t.Fatal("expected a signal for vault-a")
	}
	select {
	case <-chB:
		t.Fatal("vault-b must not be signalled")
	default:
	}
}

func TestNotifier_CoalescesPendingSignals(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("vault-a")
	defer cancel()

	n.Notify("vault-a")
	n.Notify("vault-a")
	n.Notify("vault-a")

	<-ch
	select {
	case <-ch:
		t.Fatal("signals must coalesce into one pending notification")
	default:
	}
}

func TestNotifier_SubscribeAllSeesEveryVault(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.SubscribeAll()
	defer cancel()

	n.Notify("vault-a")
	<-ch
	n.Notify("vault-b")
	<-ch
}

func TestNotifier_SubscribeAllCancelStopsDelivery(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.SubscribeAll()
	cancel()

	n.Notify("vault-a")

	select {
	case <-ch:
		t.Fatal("cancelled all-vaults subscriber must not be signalled")
	default:
	}
}

func TestNotifier_CancelStopsDelivery(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe("vault-a")
	cancel()
	cancel()

	n.Notify("vault-a")

	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not be signalled")
	default:
	}
}

func TestNotifier_NilReceiverIsSafe(t *testing.T) {
	var n *Notifier

	require.NotPanics(t, func() { n.Notify("vault-a") })

	ch, cancel := n.Subscribe("vault-a")
	assert.NotNil(t, ch)
	require.NotPanics(t, cancel)

	chAll, cancelAll := n.SubscribeAll()
	assert.NotNil(t, chAll)
	require.NotPanics(t, cancelAll)
}
