package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrPolicyNotFound = goerr.New("policy file not found")
	ErrInvalidPolicy  = goerr.New("invalid policy")
)
