package stubresolve

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the Resolution driver needs beyond the
// question itself: which servers to contact, how to expand a relative
// name into one or more qnames to try, and the various timeouts and
// feature flags.
//
// A zero Config is invalid; use NewConfig or one of the loaders below to
// obtain one with the defaults from §4.D filled in.
type Config struct {
	// Nameservers is the ordered list of server addresses (IPv4/IPv6, no
	// port) to contact. Required to be a list of strings; use
	// SetNameservers to validate arbitrary input.
	Nameservers []string

	// Port is the wire port used for every server in Nameservers.
	Port int

	// Search is the ordered list of suffix names tried when a relative
	// name needs search-list expansion.
	Search []string

	// Domain is the single fallback suffix used when ndots/search-flag
	// rules select the single-fallback path.
	Domain string

	// Ndots is the threshold: names with at least this many dots skip
	// search-list expansion.
	Ndots int

	// Timeout is the per-attempt wall-clock budget.
	Timeout time.Duration

	// Lifetime is the total per-query wall-clock budget.
	Lifetime time.Duration

	// Rotate causes nameserver rotation to start at a random offset.
	Rotate bool

	// RetryServfail causes a SERVFAIL response to be treated as a
	// transient, retryable condition rather than a per-server fatal one.
	RetryServfail bool

	// UseSearchByDefault is the effective search_flag used when a
	// resolve call leaves it unspecified.
	UseSearchByDefault bool

	// EDNS is the EDNS version to advertise on outgoing queries, or -1
	// to disable EDNS entirely.
	EDNS int
}

// NewConfig returns a Config with every field set to the default from
// §4.D. Nameservers, Search and Domain are left empty; callers
// typically fill them in from LoadSystemConfig, ParseFile, or their own
// discovery.
func NewConfig() *Config {
	return &Config{
		Port:               53,
		Ndots:              1,
		Timeout:            2 * time.Second,
		Lifetime:           30 * time.Second,
		Rotate:             false,
		RetryServfail:      false,
		UseSearchByDefault: false,
		EDNS:               -1,
	}
}

// SetNameservers validates and assigns addrs. Every element must be a
// non-empty string; anything else (a non-sequence, a non-string element)
// is an invalid-argument error in the source language this was
// distilled from, represented here simply as a Go type system
// constraint plus this emptiness check.
func (c *Config) SetNameservers(addrs []string) error {
	for i, a := range addrs {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("config: nameservers[%d] is empty", i)
		}
	}
	c.Nameservers = append([]string(nil), addrs...)
	return nil
}

// ParseFile parses a resolver-config file at path using the grammar
// documented in §6 and merges its directives into c.
func (c *Config) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.ParseReader(f)
}

// ParseReader parses the minimal resolv.conf-style grammar from r:
//
//	nameserver <addr>          (appended; only the first 3 are meaningful)
//	domain <name>
//	search <name> [<name>...]
//	options <opt> [<opt>...]   opt ∈ {rotate, timeout:<int>, ndots:<int>, edns0}
//
// '#' and ';' begin comments; blank lines are ignored.
func (c *Config) ParseReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := stripComment(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		directive, args := fields[0], fields[1:]
		switch directive {
		case "nameserver":
			if len(args) != 1 {
				return fmt.Errorf("config: nameserver directive wants exactly one address, got %q", line)
			}
			c.Nameservers = append(c.Nameservers, args[0])

		case "domain":
			if len(args) != 1 {
				return fmt.Errorf("config: domain directive wants exactly one name, got %q", line)
			}
			c.Domain = args[0]

		case "search":
			if len(args) == 0 {
				return fmt.Errorf("config: search directive wants at least one name")
			}
			c.Search = append([]string(nil), args...)

		case "options":
			for _, opt := range args {
				if err := c.applyOption(opt); err != nil {
					return err
				}
			}

		default:
			// Unknown directives are ignored, matching the permissive
			// spirit of resolv.conf parsers.
		}
	}

	return scanner.Err()
}

func (c *Config) applyOption(opt string) error {
	switch {
	case opt == "rotate":
		c.Rotate = true
	case opt == "edns0":
		if c.EDNS < 0 {
			c.EDNS = 0
		}
	case strings.HasPrefix(opt, "timeout:"):
		n, err := strconv.Atoi(strings.TrimPrefix(opt, "timeout:"))
		if err != nil {
			return fmt.Errorf("config: invalid timeout option %q: %w", opt, err)
		}
		c.Timeout = time.Duration(n) * time.Second
	case strings.HasPrefix(opt, "ndots:"):
		n, err := strconv.Atoi(strings.TrimPrefix(opt, "ndots:"))
		if err != nil {
			return fmt.Errorf("config: invalid ndots option %q: %w", opt, err)
		}
		c.Ndots = n
	default:
		// Unrecognized options are ignored.
	}
	return nil
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		line = line[:i]
	}
	return line
}
