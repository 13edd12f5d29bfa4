package notify

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToastExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	toaster := NewToaster(clock, 0)

	toast := toaster.Show("Player signed", "")
	assert.Equal(t, ToastInfo, toast.Type)
	assert.Equal(t, toast.CreatedAt.Add(DefaultToastDuration), toast.ExpiresAt)
	require.Len(t, toaster.Active(), 1)

	clock.Advance(2 * time.Second)
	assert.Len(t, toaster.Active(), 1)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(toaster.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestToastDismiss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	toaster := NewToaster(clock, time.Minute)

	first := toaster.Show("one", ToastSuccess)
	second := toaster.Show("two", ToastError)

	assert.True(t, toaster.Dismiss(first.ID))
	assert.False(t, toaster.Dismiss(first.ID))

	active := toaster.Active()
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, ToastError, active[0].Type)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestToasterStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	toaster := NewToaster(clock, time.Second)
	toaster.Show("one", ToastWarning)
	toaster.Show("two", ToastWarning)

	toaster.Stop()
	assert.Empty(t, toaster.Active())

	clock.Advance(time.Second)
	assert.Empty(t, toaster.Active())
}
