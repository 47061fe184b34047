package utilities

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"
)

// ServiceRegistration describes a service instance announced to Consul.
// HealthURL is polled by the Consul agent.
type ServiceRegistration struct {
	Name      string
	Host      string
	Port      int
	HealthURL string

	CheckInterval   time.Duration
	CheckTimeout    time.Duration
	DeregisterAfter time.Duration
}

// ServiceID is the instance id used for registration.
func (r ServiceRegistration) ServiceID() string {
	return r.Name + "-" + net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r ServiceRegistration) agentRegistration() *api.AgentServiceRegistration {
	interval := r.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := r.CheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	deregister := r.DeregisterAfter
	if deregister <= 0 {
		deregister = time.Minute
	}

	return &api.AgentServiceRegistration{
		ID:      r.ServiceID(),
		Name:    r.Name,
		Address: r.Host,
		Port:    r.Port,
		Check: &api.AgentServiceCheck{
			HTTP:                           r.HealthURL,
			Interval:                       interval.String(),
			Timeout:                        timeout.String(),
			DeregisterCriticalServiceAfter: deregister.String(),
		},
	}
}

// RegisterConsulService registers r with the Consul agent at addr and
// returns a function that deregisters it.
func RegisterConsulService(addr string, r ServiceRegistration) (func() error, error) {
	if r.Name == "" || r.Host == "" || r.Port == 0 || r.HealthURL == "" {
		return nil, errors.New("consul registration requires name, host, port and health url")
	}

	cfg := api.DefaultConfig()
	cfg.Address = addr

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	registration := r.agentRegistration()
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return nil, fmt.Errorf("register %s with consul: %w", registration.ID, err)
	}

	return func() error {
		return client.Agent().ServiceDeregister(registration.ID)
	}, nil
}
