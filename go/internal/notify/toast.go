package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultToastDuration is how long a toast stays visible
const DefaultToastDuration = 3 * time.Second

// ToastType selects the toast styling
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastWarning ToastType = "warning"
	ToastError   ToastType = "error"
)

// Toast is a short-lived message
type Toast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      ToastType `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Toaster holds the visible toasts and expires them after a fixed duration
type Toaster struct {
	clock    clockwork.Clock
	duration time.Duration

	mu     sync.Mutex
	toasts []Toast
	timers map[string]clockwork.Timer
}

// NewToaster creates a toaster. A non-positive duration uses DefaultToastDuration.
func NewToaster(clock clockwork.Clock, duration time.Duration) *Toaster {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &Toaster{
		clock:    clock,
		duration: duration,
		timers:   make(map[string]clockwork.Timer),
	}
}

// Show displays message until it expires or is dismissed
func (t *Toaster) Show(message string, typ ToastType) Toast {
	if typ == "" {
		typ = ToastInfo
	}
	now := t.clock.Now()
	toast := Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Type:      typ,
		CreatedAt: now,
		ExpiresAt: now.Add(t.duration),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = append(t.toasts, toast)
	t.timers[toast.ID] = t.clock.AfterFunc(t.duration, func() {
		t.remove(toast.ID)
	})
	return toast
}

// Dismiss removes a toast before it expires
func (t *Toaster) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
	}
	return t.removeLocked(id)
}

// Active returns the visible toasts, oldest first
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.toasts...)
}

// Stop cancels every pending expiry and clears the toasts
func (t *Toaster) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = make(map[string]clockwork.Timer)
	t.toasts = nil
}

func (t *Toaster) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id)
}

func (t *Toaster) removeLocked(id string) bool {
	delete(t.timers, id)
	for i, toast := range t.toasts {
		if toast.ID == id {
			t.toasts = append(t.toasts[:i], t.toasts[i+1:]...)
			return true
		}
	}
	return false
}
