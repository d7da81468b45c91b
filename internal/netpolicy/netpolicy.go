// Package netpolicy configures container networking: default-deny egress
// with a compiled-in allowlist. The allowlist is part of the reviewed code
// on purpose; it is not runtime input.
package netpolicy

import (
	"fmt"
	"strings"

	"github.com/jhenriksen/sandbox/internal/docker"
)

// NetworkName is the user-defined bridge network sandboxes attach to.
const NetworkName = "sandbox-net"

// Allowlist is the compile-time set of destinations reachable from inside a
// sandbox. Hostnames are resolved when the rules are applied; CIDR entries
// are allowed directly.
var Allowlist = []string{
	"api.anthropic.com",
	"statsig.anthropic.com",
	"sentry.io",
}

// EnsureNetwork creates the sandbox network if it does not exist.
func EnsureNetwork() error {
	if docker.NetworkExists(NetworkName) {
		return nil
	}
	return docker.CreateNetwork(NetworkName)
}

// DockerArgs returns the `docker run` arguments attaching a container to the
// filtered network. NET_ADMIN is needed so the allowlist rules can be
// inserted by the root helper after start; every other capability stays at
// the runtime default.
func DockerArgs() []string {
	return []string{
		"--network", NetworkName,
		"--cap-add", "NET_ADMIN",
	}
}

// AllowScript renders the shell script that installs the egress filter
// inside the container. It drops all outbound traffic, then re-admits
// loopback, established flows, DNS (so allowlisted hostnames resolve), and
// the allowlisted destinations on 443 and 80.
func AllowScript() string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -e\n")
	b.WriteString("iptables -P OUTPUT DROP\n")
	b.WriteString("iptables -A OUTPUT -o lo -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -m state --state ESTABLISHED,RELATED -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -p udp --dport 53 -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -p tcp --dport 53 -j ACCEPT\n")

	for _, dest := range Allowlist {
		if strings.Contains(dest, "/") {
			// CIDR entry, no resolution needed.
			fmt.Fprintf(&b, "iptables -A OUTPUT -d %s -j ACCEPT\n", dest)
			continue
		}
		fmt.Fprintf(&b, "for ip in $(getent ahostsv4 %s | awk '{print $1}' | sort -u); do\n", dest)
		b.WriteString("  iptables -A OUTPUT -d \"$ip\" -p tcp --dport 443 -j ACCEPT\n")
		b.WriteString("  iptables -A OUTPUT -d \"$ip\" -p tcp --dport 80 -j ACCEPT\n")
		b.WriteString("done\n")
	}
	return b.String()
}

// Apply installs the egress filter in a running container via the root
// helper.
func Apply(containerName string) error {
	if err := docker.ExecQuiet(containerName, "root", "sh", "-c", AllowScript()); err != nil {
		return fmt.Errorf("applying network policy: %w", err)
	}
	return nil
}
