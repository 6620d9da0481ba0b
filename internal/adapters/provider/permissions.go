package provider

import (
	"context"
	"sync"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// Permissions simulates the platform permission subsystem. A prompt is only
// shown while the status is undetermined, and resolves to the configured
// answer after an optional dialog delay.
type Permissions struct {
	mu      sync.Mutex
	status  domain.AuthorizationStatus
	answer  domain.AuthorizationStatus
	delay   time.Duration
	prompts int
}

// NewPermissions starts in initial; prompts resolve to answer.
func NewPermissions(initial, answer domain.AuthorizationStatus) *Permissions {
	return &Permissions{status: initial, answer: answer}
}

// Granted returns permissions that are already authorized.
func Granted() *Permissions {
	return NewPermissions(domain.AuthorizedWhenInUse, domain.AuthorizedWhenInUse)
}

// WithDelay sets how long a prompt takes to be answered.
func (p *Permissions) WithDelay(d time.Duration) *Permissions {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
	return p
}

func (p *Permissions) AuthorizationStatus() domain.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetStatus changes the permission state, as a user would in system settings.
func (p *Permissions) SetStatus(s domain.AuthorizationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

// Prompts returns how many permission dialogs have been shown.
func (p *Permissions) Prompts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

func (p *Permissions) RequestAuthorization(ctx context.Context) (domain.AuthorizationStatus, error) {
	p.mu.Lock()
	if p.status != domain.NotDetermined {
		s := p.status
		p.mu.Unlock()
		return s, nil
	}
	p.prompts++
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return domain.NotDetermined, ctx.Err()
		case <-t.C:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == domain.NotDetermined {
		p.status = p.answer
	}
	return p.status, nil
}

func (p *Permissions) denied() *domain.PositionError {
	if p.AuthorizationStatus().Granted() {
		return nil
	}
	return domain.NewPositionError(domain.PermissionDenied, "location services not authorized")
}
