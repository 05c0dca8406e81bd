// Package mdns announces the rigctld and audio TCP services over
// mDNS/DNS-SD using the pure-Go brutella/dnssd package, the way
// direwolf announces its KISS-over-TCP service.
package mdns

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const (
	rigctlServiceType = "_rigctl._tcp"
	audioServiceType  = "_ftx1audio._tcp"
)

// Announcer advertises this bridge's ports so LAN clients (e.g. mobile
// logging apps) can discover it without operators typing in IPs.
type Announcer struct {
	logger     *log.Logger
	responder  dnssd.Responder
	registered []dnssd.Service
}

// New creates a responder ready to register services.
func New(logger *log.Logger) (*Announcer, error) {
	if logger == nil {
		logger = log.Default()
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("mdns: new responder: %w", err)
	}
	return &Announcer{logger: logger, responder: rp}, nil
}

// AnnounceRigctl registers the rigctld TCP service at the given port
// under the given instance name.
func (a *Announcer) AnnounceRigctl(name string, port int) error {
	return a.announce(name, rigctlServiceType, port)
}

// AnnounceAudio registers the audio bridge TCP service at the given port.
func (a *Announcer) AnnounceAudio(name string, port int) error {
	return a.announce(name, audioServiceType, port)
}

func (a *Announcer) announce(name, serviceType string, port int) error {
	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: serviceType,
		Port: port,
	}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("mdns: new service %s: %w", serviceType, err)
	}
	if _, err := a.responder.Add(sv); err != nil {
		return fmt.Errorf("mdns: add service %s: %w", serviceType, err)
	}
	a.registered = append(a.registered, sv)
	a.logger.Info("mdns: announcing service", "type", serviceType, "port", port, "name", name)
	return nil
}

// Run starts responding to mDNS queries until ctx is canceled. It should
// be called after all services are announced.
func (a *Announcer) Run(ctx context.Context) error {
	if len(a.registered) == 0 {
		return nil
	}
	if err := a.responder.Respond(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mdns: responder: %w", err)
	}
	return nil
}
