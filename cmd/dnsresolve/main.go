// Command dnsresolve is a thin CLI wrapper around the stubresolve
// package: resolve a name, reverse-resolve an address, or walk up to
// find the zone a name lives in.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/classmarkets/stubresolve"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	nameservers []string
	search      []string
	domain      string
	port        int
	rdtype      string
	timeout     time.Duration
	lifetime    time.Duration
	logLevel    string
}

func main() {
	var opt options

	root := &cobra.Command{
		Use:   "dnsresolve",
		Short: "DNS stub resolver CLI",
		Long: `dnsresolve drives a DNS stub resolver: search-list expansion,
nameserver rotation with backoff, TCP escalation on truncation, and an
answer cache, all without ever recursing through delegations itself.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVarP(&opt.nameservers, "nameserver", "n", nil, "nameserver address (repeatable); defaults to /etc/resolv.conf")
	root.PersistentFlags().StringSliceVar(&opt.search, "search", nil, "search suffix (repeatable)")
	root.PersistentFlags().StringVar(&opt.domain, "domain", "", "single fallback domain")
	root.PersistentFlags().IntVar(&opt.port, "port", 53, "nameserver port")
	root.PersistentFlags().DurationVar(&opt.timeout, "timeout", 2*time.Second, "per-attempt timeout")
	root.PersistentFlags().DurationVar(&opt.lifetime, "lifetime", 30*time.Second, "overall query lifetime")
	root.PersistentFlags().StringVar(&opt.logLevel, "log-level", "warn", "panic|fatal|error|warn|info|debug|trace")

	root.AddCommand(resolveCmd(&opt))
	root.AddCommand(resolveAddressCmd(&opt))
	root.AddCommand(zoneForNameCmd(&opt))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveCmd(opt *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a name to a record set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildResolver(opt)
			if err != nil {
				return err
			}

			rdtype, ok := dns.StringToType[opt.rdtype]
			if !ok {
				return fmt.Errorf("unknown record type %q", opt.rdtype)
			}

			answer, err := r.Resolve(cmd.Context(), args[0], rdtype, dns.ClassINET, stubresolve.ResolveOptions{})
			if err != nil {
				return err
			}

			for i := 0; ; i++ {
				rr, err := answer.At(i)
				if err != nil {
					break
				}
				fmt.Println(rr.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opt.rdtype, "type", "t", "A", "record type to query")
	return cmd
}

func resolveAddressCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-address <ip>",
		Short: "Reverse-resolve an IP address to a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildResolver(opt)
			if err != nil {
				return err
			}

			answer, err := r.ResolveAddress(cmd.Context(), args[0], stubresolve.ResolveOptions{})
			if err != nil {
				return err
			}

			for i := 0; ; i++ {
				rr, err := answer.At(i)
				if err != nil {
					break
				}
				fmt.Println(rr.String())
			}
			return nil
		},
	}
}

func zoneForNameCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "zone-for-name <name>",
		Short: "Find the zone a name lives in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildResolver(opt)
			if err != nil {
				return err
			}

			zone, err := r.ZoneForName(cmd.Context(), args[0], dns.ClassINET)
			if err != nil {
				return err
			}
			fmt.Println(zone)
			return nil
		},
	}
}

func buildResolver(opt *options) (*stubresolve.Resolver, error) {
	var cfg *stubresolve.Config
	if len(opt.nameservers) > 0 {
		cfg = stubresolve.NewConfig()
		if err := cfg.SetNameservers(opt.nameservers); err != nil {
			return nil, err
		}
	} else {
		loaded, err := stubresolve.LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("no --nameserver given and system config unavailable: %w", err)
		}
		cfg = loaded
	}

	if len(opt.search) > 0 {
		cfg.Search = opt.search
	}
	if opt.domain != "" {
		cfg.Domain = opt.domain
	}
	cfg.Port = opt.port
	cfg.Timeout = opt.timeout
	cfg.Lifetime = opt.lifetime

	level, err := logrus.ParseLevel(opt.logLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)

	return &stubresolve.Resolver{Config: cfg, Logger: logger}, nil
}
