// Package config handles configuration loading for oneblock-gateway.
//
// # Overview
//
// Configuration is loaded from YAML (default) or TOML (".toml" extension)
// files with environment variable expansion, then defaults and environment
// overrides are applied and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ONEBLOCK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/oneblock/gateway.yaml (~/.config/oneblock/gateway.yaml)
//
// # Environment Variables
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ONEBLOCK_JWT_SECRET}"
//
// These variables override file values outright:
//
//   - ONEBLOCK_DB_PATH: database.path
//   - ONEBLOCK_JWT_SECRET: auth.jwt_secret
//   - INITIAL_STUDENT_ID: registration.initial_student_id
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  grpc_addr: ""              # optional
//
//	database:
//	  driver: "sqlite"           # sqlite, postgres
//	  path: "/var/lib/oneblock/gateway.db"
//	  dsn: ""                    # postgres only
//
//	auth:
//	  jwt_secret: "..."          # at least 32 bytes
//	  challenge: "login Oneblock"
//	  token_ttl: "24h"
//
//	registration:
//	  initial_student_id: "1799" # first allocated id is 1800
//	  student_id_width: 4
//
//	guard:
//	  routes:
//	    - {prefix: "/dashboard", kind: "page"}
//	    - {prefix: "/api/file", kind: "api"}
//
// # Usage
//
//	cfg, err := config.Load("/etc/oneblock/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
