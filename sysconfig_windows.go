//go:build windows
// +build windows

package stubresolve

import "errors"

// LoadSystemConfig is not implemented on Windows: the nameserver/search
// list lives in the registry rather than a resolv.conf-style file, and
// reading it is out of scope for this package (§1: "System-configuration
// parsing ... is an external collaborator"). Callers on Windows must
// build a Config programmatically or via LoadYAML/ParseFile.
func LoadSystemConfig() (*Config, error) {
	return nil, errors.New("stubresolve: LoadSystemConfig is not implemented on windows")
}
