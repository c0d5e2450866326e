// interpreter.go verifies that script interpreters exist before a job
// runs, so a missing interpreter fails fast instead of mid-schedule.
package executor

import (
	"fmt"
	"os/exec"
	"sync"
)

// ValidInterpreters is the allowlist of interpreters a job's script
// may request.
var ValidInterpreters = []string{"bash", "sh", "python", "perl"}

// InterpreterCache caches LookPath results per interpreter.
type InterpreterCache struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewInterpreterCache creates an empty interpreter path cache.
func NewInterpreterCache() *InterpreterCache {
	return &InterpreterCache{cache: make(map[string]string)}
}

// VerifyInterpreter returns the absolute path of an allowlisted
// interpreter, or an error if it is not allowlisted or not on $PATH.
func (c *InterpreterCache) VerifyInterpreter(interpreter string) (string, error) {
	if !isValidInterpreter(interpreter) {
		return "", fmt.Errorf("invalid interpreter: %s (allowed: bash, sh, python, perl)", interpreter)
	}

	c.mu.RLock()
	if path, ok := c.cache[interpreter]; ok {
		c.mu.RUnlock()
		return path, nil
	}
	c.mu.RUnlock()

	path, err := exec.LookPath(interpreter)
	if err != nil {
		return "", fmt.Errorf("interpreter '%s' not found in PATH: %w", interpreter, err)
	}

	c.mu.Lock()
	c.cache[interpreter] = path
	c.mu.Unlock()

	return path, nil
}

func isValidInterpreter(interpreter string) bool {
	for _, valid := range ValidInterpreters {
		if interpreter == valid {
			return true
		}
	}
	return false
}

var globalCache = NewInterpreterCache()

// VerifyInterpreter verifies through a process-wide cache.
func VerifyInterpreter(interpreter string) (string, error) {
	return globalCache.VerifyInterpreter(interpreter)
}
