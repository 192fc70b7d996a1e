package config

import (
	"fmt"
	"os"
)

// WriteTemplate drops a starter daemon config at path. Refuses to clobber an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(daemonTemplate), 0o600)
}

const daemonTemplate = `name = "embersyncd"
sync_addr = "127.0.0.1:50058"
admin_addr = "127.0.0.1:50080"
cors_origins = ["http://localhost:3000"]

drain_timeout_ms = 30000
navigate_timeout_ms = 10000
read_timeout_ms = 0
write_timeout_ms = 10000

max_payload_bytes = 65536
dispatch_queue_depth = 64
`
