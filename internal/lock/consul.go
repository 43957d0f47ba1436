package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	consulapi "github.com/hashicorp/consul/api"

	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/logger"
)

const lockPrefix = "taskrun/locks/"

// ConsulLocker backs the isolation mutex with Consul sessions, so the lock
// survives across hosts and auto-expires when a holder crashes.
type ConsulLocker struct {
	cli *consulapi.Client
}

// NewConsulLocker connects to the Consul agent at addr (empty uses the
// default agent address).
func NewConsulLocker(addr string) (*ConsulLocker, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &ConsulLocker{cli: cli}, nil
}

// Acquire takes the named lock through a Consul session with the given TTL.
// LockWaitTime bounds how long we block before giving up.
func (l *ConsulLocker) Acquire(ctx context.Context, name string, timeout, ttl time.Duration) (func(), error) {
	holder := fmt.Sprintf("taskrun-%s", uuid.NewString())

	opts := &consulapi.LockOptions{
		Key:          lockPrefix + name,
		Value:        []byte(holder),
		SessionName:  holder,
		SessionTTL:   ttl.String(),
		LockWaitTime: timeout,
		LockTryOnce:  true,
	}
	lk, err := l.cli.LockOpts(opts)
	if err != nil {
		return nil, fmt.Errorf("consul lock options: %w", err)
	}

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			close(stopCh)
		case <-done:
		}
	}()

	leaderCh, err := lk.Lock(stopCh)
	close(done)
	if err != nil {
		return nil, errors.NewLockUnavailableError(name, timeout).WithOriginalError(err)
	}
	if leaderCh == nil {
		return nil, errors.NewLockUnavailableError(name, timeout)
	}

	logger.Op.WithFields(map[string]interface{}{
		"lock":   name,
		"holder": holder,
		"ttl":    ttl,
	}).Debug("Acquired consul lock")

	release := func() {
		if err := lk.Unlock(); err != nil {
			logger.Op.WithFields(map[string]interface{}{
				"lock":  name,
				"error": err,
			}).Warn("Failed to release consul lock; session TTL will expire it")
		}
	}
	return release, nil
}
