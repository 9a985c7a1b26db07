package stubresolve

import (
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig is the on-disk shape accepted by LoadYAML: a declarative
// alternative to the resolv.conf-style grammar in ParseReader, for
// deployments that prefer config-as-code.
type yamlConfig struct {
	Nameservers        []string `yaml:"nameservers"`
	Port               int      `yaml:"port"`
	Search             []string `yaml:"search"`
	Domain             string   `yaml:"domain"`
	Ndots              int      `yaml:"ndots"`
	TimeoutSeconds     float64  `yaml:"timeout"`
	LifetimeSeconds    float64  `yaml:"lifetime"`
	Rotate             bool     `yaml:"rotate"`
	RetryServfail      bool     `yaml:"retry_servfail"`
	UseSearchByDefault bool     `yaml:"use_search_by_default"`
	EDNS               *int     `yaml:"edns"`
}

// LoadYAML reads a YAML document from path and returns a Config built
// from it, with defaults from NewConfig filling in anything the
// document omits.
func LoadYAML(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadYAMLReader(f)
}

// LoadYAMLReader is LoadYAML reading from an already-open reader.
func LoadYAMLReader(r io.Reader) (*Config, error) {
	var doc yamlConfig
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}

	cfg := NewConfig()

	if len(doc.Nameservers) > 0 {
		if err := cfg.SetNameservers(doc.Nameservers); err != nil {
			return nil, err
		}
	}
	if doc.Port != 0 {
		cfg.Port = doc.Port
	}
	if len(doc.Search) > 0 {
		cfg.Search = doc.Search
	}
	if doc.Domain != "" {
		cfg.Domain = doc.Domain
	}
	if doc.Ndots != 0 {
		cfg.Ndots = doc.Ndots
	}
	if doc.TimeoutSeconds != 0 {
		cfg.Timeout = time.Duration(doc.TimeoutSeconds * float64(time.Second))
	}
	if doc.LifetimeSeconds != 0 {
		cfg.Lifetime = time.Duration(doc.LifetimeSeconds * float64(time.Second))
	}
	cfg.Rotate = doc.Rotate
	cfg.RetryServfail = doc.RetryServfail
	cfg.UseSearchByDefault = doc.UseSearchByDefault
	if doc.EDNS != nil {
		cfg.EDNS = *doc.EDNS
	}

	return cfg, nil
}
