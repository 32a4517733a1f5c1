// Package ssh opens a local port forward through a bastion host so the probe
// can reach an Oracle listener that is not directly routable.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultTimeout bounds the bastion connect when the config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Service defines the interface for SSH tunnel operations.
type Service interface {
	Open(ctx context.Context, cfg models.SSHTunnelConfig, remoteHost string, remotePort int) (*models.SSHTunnel, error)
}

// SSHClient wraps ssh.Client for mocking.
type SSHClient interface {
	Dial(network, addr string) (net.Conn, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient creates a new SSH client.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		logger:        logger,
	}
}

func connectTimeout(cfg models.SSHTunnelConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return DefaultTimeout
}

func (s *Impl) buildConfig(cfg models.SSHTunnelConfig) (*ssh.ClientConfig, error) {
	var key []byte
	var err error

	// Load private key from file or use provided key
	if len(cfg.PrivateKey) > 0 {
		key = cfg.PrivateKey
	} else if cfg.KeyPath != "" {
		key, err = os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.KeyPath, err)
		}
	} else {
		return nil, fmt.Errorf("no private key provided")
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via known_hosts
	if cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts from %s: %w", cfg.KnownHostsPath, err)
		}
	}

	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         connectTimeout(cfg),
	}, nil
}

func (s *Impl) connect(ctx context.Context, cfg models.SSHTunnelConfig) (SSHClient, error) {
	sshConfig, err := s.buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
	defer cancel()

	// Create client with context timeout
	clientChan := make(chan struct {
		client SSHClient
		err    error
	}, 1)

	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		clientChan <- struct {
			client SSHClient
			err    error
		}{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-clientChan:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, res.err)
		}
		return res.client, nil
	}
}

// Open connects to the bastion and forwards a random local port to
// remoteHost:remotePort. The caller must Close the returned tunnel.
func (s *Impl) Open(ctx context.Context, cfg models.SSHTunnelConfig, remoteHost string, remotePort int) (*models.SSHTunnel, error) {
	remoteAddr := net.JoinHostPort(remoteHost, strconv.Itoa(remotePort))

	s.logger.Info().
		Str("bastion", cfg.Host).
		Int("port", cfg.Port).
		Str("user", cfg.Username).
		Str("remote", remoteAddr).
		Msg("opening SSH tunnel")

	client, err := s.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to listen for tunnel: %w", err)
	}

	fwd := &forwarder{
		client:     client,
		listener:   listener,
		remoteAddr: remoteAddr,
		logger:     s.logger,
	}
	fwd.wg.Add(1)
	go fwd.serve()

	local := listener.Addr().(*net.TCPAddr)

	s.logger.Debug().
		Str("local", local.String()).
		Str("remote", remoteAddr).
		Msg("SSH tunnel established")

	return &models.SSHTunnel{
		LocalHost: local.IP.String(),
		LocalPort: local.Port,
		Close:     fwd.close,
	}, nil
}

type forwarder struct {
	client     SSHClient
	listener   net.Listener
	remoteAddr string
	logger     zerolog.Logger

	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (f *forwarder) serve() {
	defer f.wg.Done()

	for {
		local, err := f.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				f.logger.Warn().Err(err).Msg("tunnel accept failed")
			}
			return
		}

		remote, err := f.client.Dial("tcp", f.remoteAddr)
		if err != nil {
			f.logger.Warn().Err(err).Str("remote", f.remoteAddr).Msg("tunnel dial failed")
			_ = local.Close()
			continue
		}

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			pipe(local, remote)
		}()
	}
}

// pipe copies in both directions until either side closes.
func pipe(a, b net.Conn) {
	done := make(chan struct{}, 2)
	cp := func(dst, src net.Conn) {
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}

	go cp(a, b)
	go cp(b, a)

	<-done
	_ = a.Close()
	_ = b.Close()
	<-done
}

func (f *forwarder) close() error {
	f.once.Do(func() {
		lerr := f.listener.Close()
		cerr := f.client.Close()
		f.wg.Wait()
		f.err = multierr.Combine(lerr, cerr)
	})
	return f.err
}
