package models

import "time"

// SSHTunnelConfig holds the bastion used to reach the Oracle listener.
type SSHTunnelConfig struct {
	Host       string
	Port       int
	Username   string
	PrivateKey []byte // loaded from file path
	KeyPath    string // path to key file
	// KnownHostsPath enables host key verification; empty accepts any key.
	KnownHostsPath string
	// Timeout bounds the bastion connect and handshake.
	Timeout time.Duration
}

// SSHTunnel describes an open local port forward.
type SSHTunnel struct {
	LocalHost string
	LocalPort int
	Close     func() error
}
