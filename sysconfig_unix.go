//go:build !windows
// +build !windows

package stubresolve

// LoadSystemConfig reads /etc/resolv.conf using the grammar in
// Config.ParseReader and returns the resulting Config, defaults filled
// in from NewConfig. This is the "from system config" default that
// §4.D's field table describes for Nameservers, Search and Domain.
func LoadSystemConfig() (*Config, error) {
	cfg := NewConfig()
	if err := cfg.ParseFile("/etc/resolv.conf"); err != nil {
		return nil, err
	}
	return cfg, nil
}
