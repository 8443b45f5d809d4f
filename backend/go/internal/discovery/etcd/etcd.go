package etcd

import (
	"context"
	"fmt"
	"path"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/intentcode/services"

// ServiceDiscovery registers service instances under a lease and resolves them by name.
type ServiceDiscovery struct {
	cli *clientv3.Client
}

// NewServiceDiscovery creates a new ServiceDiscovery.
func NewServiceDiscovery(endpoints []string, username, password string) (*ServiceDiscovery, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd: no endpoints configured")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		Username:    username,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &ServiceDiscovery{cli: cli}, nil
}

// ServiceKey returns the etcd key an instance of serviceName at addr is stored under.
func ServiceKey(serviceName, addr string) string {
	return path.Join(keyPrefix, serviceName, addr)
}

// Register puts the instance under a lease and keeps the lease alive until ctx is done.
// The key is removed on return from the keep-alive loop.
func (s *ServiceDiscovery) Register(ctx context.Context, serviceName, addr string, ttl int64) error {
	leaseResp, err := s.cli.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("etcd: grant lease: %w", err)
	}

	key := ServiceKey(serviceName, addr)
	if _, err = s.cli.Put(ctx, key, addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("etcd: put %s: %w", key, err)
	}

	keepAliveCh, err := s.cli.KeepAlive(ctx, leaseResp.ID)
	if err != nil {
		return fmt.Errorf("etcd: keep alive: %w", err)
	}

	go func() {
		defer s.revoke(leaseResp.ID)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-keepAliveCh:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

func (s *ServiceDiscovery) revoke(id clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.cli.Revoke(ctx, id)
}

// Close closes the etcd client.
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}
