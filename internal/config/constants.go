package config

import (
	"time"

	"pkoinsight/pkg/contracts"
)

// Application constants
const (
	AppName    = "pkoinsight"
	AppVersion = contracts.Version

	// API Endpoints
	APIBasePath     = "/api"
	MetricsEndpoint = "/metrics"

	// Session sweep cadence
	SessionSweepInterval = time.Minute
)
