package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DNS-OARC/gonet/resolver"
)

// errUnknownFamily is returned when --family does not name a recognized
// address family.
var errUnknownFamily = errors.New("unknown family, expected v4, v6 or all")

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve host names and addresses",
	}

	cmd.AddCommand(resolveForwardCmd())
	cmd.AddCommand(resolveReverseCmd())
	cmd.AddCommand(resolveQueryCmd())

	return cmd
}

// --- resolve forward ---

func resolveForwardCmd() *cobra.Command {
	var family string

	cmd := &cobra.Command{
		Use:   "forward <name>",
		Short: "Look up the addresses for a host name",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return fmt.Errorf("parse family: %w", err)
			}

			r := resolver.New()
			addrs, err := r.GetHostByName(c.Context(), args[0], fam)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			if len(addrs) == 0 {
				fmt.Printf("%s: no addresses found\n", args[0])
				return nil
			}
			for _, a := range addrs {
				fmt.Println(a.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&family, "family", "all", "address family: v4, v6 or all")
	return cmd
}

func parseFamily(s string) (resolver.Family, error) {
	switch s {
	case "v4":
		return resolver.V4, nil
	case "v6":
		return resolver.V6, nil
	case "all", "":
		return resolver.All, nil
	default:
		return resolver.Unspec, fmt.Errorf("%w: %q", errUnknownFamily, s)
	}
}

// --- resolve reverse ---

func resolveReverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <addr>",
		Short: "Look up the host name for an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			addr, err := parseAddrArg(args[0])
			if err != nil {
				return err
			}

			r := resolver.New()
			name, err := r.GetHostByAddr(c.Context(), addr)
			if err != nil {
				return fmt.Errorf("reverse lookup %s: %w", args[0], err)
			}
			fmt.Println(name)
			return nil
		},
	}
}

// --- resolve query ---

func resolveQueryCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
		class   string
	)

	cmd := &cobra.Command{
		Use:   "query <name> <type>",
		Short: "Send a raw DNS query (e.g. A, AAAA, MX, TXT, NS)",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			rrType, err := parseRRType(args[1])
			if err != nil {
				return err
			}
			rrClass, err := parseRRClass(class)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()

			answers, err := resolver.Query(ctx, args[0], rrType, rrClass, resolver.QueryConfig{
				Server:  server,
				Timeout: timeout,
			})
			if err != nil {
				return fmt.Errorf("query %s %s: %w", args[0], args[1], err)
			}
			if len(answers) == 0 {
				fmt.Printf("%s: no answers\n", args[0])
				return nil
			}
			for _, a := range answers {
				fmt.Println(a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "127.0.0.1:53", "nameserver address (host:port)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "query timeout")
	cmd.Flags().StringVar(&class, "class", "IN", "query class: IN, CH or HS")

	return cmd
}

var rrTypes = map[string]resolver.RRType{
	"A":      resolver.TypeA,
	"NS":     resolver.TypeNS,
	"CNAME":  resolver.TypeCNAME,
	"SOA":    resolver.TypeSOA,
	"PTR":    resolver.TypePTR,
	"MX":     resolver.TypeMX,
	"TXT":    resolver.TypeTXT,
	"AAAA":   resolver.TypeAAAA,
	"SRV":    resolver.TypeSRV,
	"NAPTR":  resolver.TypeNAPTR,
	"OPT":    resolver.TypeOPT,
	"DS":     resolver.TypeDS,
	"RRSIG":  resolver.TypeRRSIG,
	"NSEC":   resolver.TypeNSEC,
	"DNSKEY": resolver.TypeDNSKEY,
	"NSEC3":  resolver.TypeNSEC3,
	"TSIG":   resolver.TypeTSIG,
}

var errUnknownRRType = errors.New("unknown record type")

func parseRRType(s string) (resolver.RRType, error) {
	if t, ok := rrTypes[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownRRType, s)
}

var errUnknownRRClass = errors.New("unknown record class")

func parseRRClass(s string) (resolver.RRClass, error) {
	switch s {
	case "IN", "":
		return resolver.ClassIN, nil
	case "CH":
		return resolver.ClassCH, nil
	case "HS":
		return resolver.ClassHS, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownRRClass, s)
	}
}
