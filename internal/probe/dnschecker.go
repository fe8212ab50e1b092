package probe

import (
	"context"
	"net/url"
)

// DNS classes reported by CheckDNS.
const (
	DNSResolves    = "RESOLVES"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSServfail    = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
)

type DNSChecker struct {
	Resolver Resolver
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{}
}

func (d *DNSChecker) Check(ctx context.Context, target string) CheckResult {
	host := extractHost(target)
	dns := CheckDNS(ctx, d.Resolver, host)

	msg := dns.Class
	if dns.Class != DNSResolves && dns.ResolverError != "" {
		msg += ": " + dns.ResolverError
	}
	return CheckResult{
		Name:    "DNS",
		Success: dns.Class == DNSResolves,
		Message: msg,
	}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
