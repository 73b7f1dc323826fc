package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"samplr/config"
	"samplr/pkg/entities"
	"samplr/pkg/metrics"
	"samplr/pkg/repo"
	"samplr/utilities"
)

// PushSender delivers a message to the devices of one account.
type PushSender interface {
	Send(ctx context.Context, msg entities.PushMessage) error
}

// Dispatcher fans notifications out to mobile push. It is advisory: failures
// are logged and reported as not delivered, never returned.
type Dispatcher struct {
	users    repo.UserRepoImply
	sender   PushSender
	timeout  time.Duration
	throttle chan struct{}
	wg       sync.WaitGroup
}

func NewDispatcher(users repo.UserRepoImply, sender PushSender, conf *config.SamplrConfModel) *Dispatcher {
	workers := conf.Notifications.PushWorkers
	if workers <= 0 {
		workers = 1
	}

	return &Dispatcher{
		users:    users,
		sender:   sender,
		timeout:  conf.PushTimeout(),
		throttle: make(chan struct{}, workers),
	}
}

// Dispatch pushes entry to the account's devices unless push is turned off.
// It reports whether the push channel accepted the message.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID string, entry entities.NotificationEntry) (delivered bool) {
	log := utilities.NewLoggerWithFields("Dispatcher.Dispatch", map[string]interface{}{
		"account":      accountID,
		"notification": entry.ID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("push dispatch panicked: %v", r)
			metrics.PushDispatches.WithLabelValues(metrics.PushFailed).Inc()
			delivered = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	account, err := d.users.GetProfile(ctx, accountID)
	if err != nil {
		log.WithError(err).Error("failed to read notification preferences")
		metrics.PushDispatches.WithLabelValues(metrics.PushFailed).Inc()
		return false
	}
	if !account.PushEnabled() {
		log.Debug("push disabled by preference")
		metrics.PushDispatches.WithLabelValues(metrics.PushDisabled).Inc()
		return false
	}

	err = d.sender.Send(ctx, entities.PushMessage{
		AccountID: account.ProfileID,
		Title:     entry.Title,
		Message:   entry.Message,
		Type:      entry.Type,
		Data:      utilities.StringifyMap(entry.Data),
	})
	if err != nil {
		if errors.Is(err, entities.ErrNoPushDevice) {
			log.Debug("no push device registered")
			metrics.PushDispatches.WithLabelValues(metrics.PushNoDevice).Inc()
			return false
		}
		log.WithError(err).Error("failed to push notification")
		metrics.PushDispatches.WithLabelValues(metrics.PushFailed).Inc()
		return false
	}

	metrics.PushDispatches.WithLabelValues(metrics.PushDelivered).Inc()
	return true
}

// DispatchAsync runs Dispatch in the background on a fresh context. Request
// contexts, gin's pooled ones included, are not retained past the call. At
// most push_workers dispatches run at once.
func (d *Dispatcher) DispatchAsync(accountID string, entry entities.NotificationEntry) {
	ctx := context.Background()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		d.throttle <- struct{}{}
		defer func() {
			<-d.throttle
		}()

		d.Dispatch(ctx, accountID, entry)
	}()
}

// Drain waits for in-flight dispatches or for ctx to end.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining push dispatches: %w", ctx.Err())
	}
}
