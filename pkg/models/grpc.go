// Package models pkg/models/grpc.go
package models

// ServiceRole identifies how a process participates in gRPC security.
type ServiceRole string

const (
	// RoleCore is the flowwatch service itself: server only.
	RoleCore ServiceRole = "core"
)

// SecurityMode defines the type of transport security to use.
type SecurityMode string

// SecurityConfig holds common gRPC security configuration.
type SecurityConfig struct {
	Mode           SecurityMode `json:"mode"`
	CertDir        string       `json:"cert_dir"`
	ServerName     string       `json:"server_name,omitempty"`
	Role           ServiceRole  `json:"role"`
	TrustDomain    string       `json:"trust_domain,omitempty"`    // For SPIFFE
	WorkloadSocket string       `json:"workload_socket,omitempty"` // For SPIFFE
}
