// Package config loads pkoinsight configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. Default() values
//  2. A YAML file (PKO_CONFIG_FILE, ./config.yaml or ./configs/config.yaml)
//  3. Environment variables prefixed with PKO_
//
// Example:
//
//	PKO_SERVER_PORT=9000
//	PKO_SOURCE_URL=https://api.psdata.un.org/public/data/DPPADPOSS-PKO/CSV
//	PKO_ANALYSIS_LATITUDE_POLICY=first_row
//	PKO_TELEMETRY_TRACE_EXPORTER=stdout
package config
