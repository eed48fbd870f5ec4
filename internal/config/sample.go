// ABOUTME: Starter configuration written by `oneblock-gateway init`
// ABOUTME: Renders a commented YAML file with a freshly generated session secret

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const sampleTemplate = `# oneblock-gateway configuration

server:
  http_addr: "0.0.0.0:8080"
  # grpc_addr: "0.0.0.0:50051"

tailscale:
  enabled: false
  hostname: "oneblock"
  auth_key: "${TS_AUTHKEY}"
  state_dir: "%[1]s"
  ephemeral: false

database:
  driver: "sqlite"
  path: "%[2]s"
  # driver: "postgres"
  # dsn: "${DATABASE_URL}"

auth:
  jwt_secret: "%[3]s"
  challenge: "login Oneblock"
  token_ttl: "24h"
  cookie_name: "oneblock_session"
  cookie_secure: false

registration:
  initial_student_id: "1799"
  student_id_width: 4

guard:
  routes:
    - prefix: "/dashboard"
      kind: "page"
    - prefix: "/api/file"
      kind: "api"
    - prefix: "/api/save"
      kind: "api"
    - prefix: "/api/me"
      kind: "api"

logging:
  level: "info"
  format: "text"
`

// GenerateSecret returns a random hex secret suitable for auth.jwt_secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sample renders the starter configuration with data files under dataDir.
func Sample(dataDir string) (string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(sampleTemplate,
		filepath.Join(dataDir, "tailscale"),
		filepath.Join(dataDir, "gateway.db"),
		secret,
	), nil
}

// WriteSample writes the starter configuration to path, refusing to overwrite.
func WriteSample(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	content, err := Sample(dataDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
