package netops

import (
	"os"
	"strings"
)

// RealSystemController reads and writes sysctl values through /proc.
type RealSystemController struct{}

// ReadSysctl reads a sysctl value from the specified path.
func (c *RealSystemController) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value to the specified path.
func (c *RealSystemController) WriteSysctl(path, value string) error {
	return os.WriteFile(path, []byte(value), 0644)
}
