package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/hostscout/api/pkg/domain/scan"
	"github.com/hostscout/api/pkg/logger"
)

// factCommands maps raw-fact keys to the shell command producing each
// value. Commands that fail on a host simply leave the fact absent.
var factCommands = []struct {
	key string
	cmd string
}{
	{"uname_hostname", "uname -n"},
	{"uname_processor", "uname -p"},
	{"uname_os", "uname -s"},
	{"etc_release_name", ". /etc/os-release 2>/dev/null && echo \"$NAME\""},
	{"etc_release_version", ". /etc/os-release 2>/dev/null && echo \"$VERSION_ID\""},
	{"etc_release_release", "cat /etc/redhat-release 2>/dev/null"},
	{"dmi_system_uuid", "cat /sys/class/dmi/id/product_uuid 2>/dev/null"},
	{"cpu_count", "nproc 2>/dev/null"},
	{"cpu_socket_count", "lscpu 2>/dev/null | awk -F: '/^Socket/ {gsub(/ /,\"\",$2); print $2}'"},
	{"cpu_core_per_socket", "lscpu 2>/dev/null | awk -F: '/per socket/ {gsub(/ /,\"\",$2); print $2}'"},
	{"ifconfig_ip_addresses", "hostname -I 2>/dev/null"},
	{"ifconfig_mac_addresses", "cat /sys/class/net/*/address 2>/dev/null | grep -v 00:00:00:00:00:00"},
	{"subscription_manager_id", "subscription-manager identity 2>/dev/null | awk '/identity:/ {print $3}'"},
	{"subman_consumed", "subscription-manager list --consumed 2>/dev/null"},
	{"redhat_packages_gpg_is_redhat", "rpm -qa --qf '%{VENDOR}\\n' 2>/dev/null | grep -q 'Red Hat' && echo true || echo false"},
	{"redhat_packages_gpg_num_rh_packages", "rpm -qa --qf '%{VENDOR}\\n' 2>/dev/null | grep -c 'Red Hat'"},
	{"virt_what_type", "virt-what 2>/dev/null | head -1"},
	{"virt_type", "systemd-detect-virt --vm 2>/dev/null | grep -v none"},
	{"system_memory_bytes", "awk '/MemTotal/ {print $2 * 1024}' /proc/meminfo 2>/dev/null"},
	{"date_machine_id", "date -r /etc/machine-id '+%Y-%m-%d' 2>/dev/null"},
	{"date_filesystem_create", "stat -c %w / 2>/dev/null | cut -d' ' -f1"},
	{"date_yum_history", "ls -t /var/lib/yum/history 2>/dev/null | tail -1 | cut -d. -f1"},
	{"date_anaconda_log", "date -r /var/log/anaconda '+%Y-%m-%d' 2>/dev/null"},
}

// SSHBackend runs playbooks over plain SSH sessions. Hosts within a
// group run concurrently; the group size is the concurrency bound.
type SSHBackend struct {
	Timeout time.Duration
	logger  *logger.Logger
}

// NewSSHBackend creates a backend with the given per-host dial timeout.
func NewSSHBackend(timeout time.Duration, log *logger.Logger) *SSHBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SSHBackend{Timeout: timeout, logger: log.With("component", "ssh_backend")}
}

// Run implements Backend.
func (b *SSHBackend) Run(ctx context.Context, group Group, playbook Playbook) ([]HostResult, error) {
	cfg, err := b.clientConfig(group.Vars)
	if err != nil {
		return nil, err
	}
	port := group.Vars[VarPort]
	if port == "" {
		port = "22"
	}

	results := make([]HostResult, len(group.Hosts))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, host := range group.Hosts {
		i, host := i, host
		g.Go(func() error {
			res := b.runHost(ctx, host, port, cfg, playbook)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *SSHBackend) runHost(ctx context.Context, host, port string, cfg *ssh.ClientConfig, playbook Playbook) HostResult {
	addr := net.JoinHostPort(host, port)
	client, err := dialContext(ctx, addr, cfg)
	if err != nil {
		status := HostUnreachable
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "permission denied") {
			status = HostAuthFailed
		}
		b.logger.Debug("ssh connection failed", "host", host, "error", err)
		return HostResult{Host: host, Status: status}
	}
	defer client.Close()

	if playbook == PlaybookConnect {
		return HostResult{Host: host, Status: HostSuccess}
	}

	var facts []scan.RawFact
	for _, fc := range factCommands {
		out, err := runCommand(client, fc.cmd)
		if err != nil || out == "" {
			continue
		}
		var value []byte
		if fc.key == "subman_consumed" {
			// Entitlement consumers expect a list of objects, not the
			// raw block output of subscription-manager.
			consumed := parseSubmanConsumed(out)
			if len(consumed) == 0 {
				continue
			}
			value, err = json.Marshal(consumed)
		} else {
			value, err = json.Marshal(out)
		}
		if err != nil {
			continue
		}
		facts = append(facts, scan.RawFact{Key: fc.key, Value: value})
	}
	if len(facts) == 0 {
		return HostResult{Host: host, Status: HostFailed}
	}
	return HostResult{Host: host, Status: HostSuccess, Facts: facts}
}

// clientConfig builds the SSH auth config from inventory variables. A
// passphrase-protected key that cannot be decrypted surfaces as
// ErrPassphraseRequired rather than a per-host auth failure.
func (b *SSHBackend) clientConfig(vars map[string]string) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if keyPath := vars[VarPrivateKeyFile]; keyPath != "" {
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if !errors.As(err, &missing) {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			passphrase := vars[VarPassphrase]
			if passphrase == "" {
				return nil, ErrPassphraseRequired
			}
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
			if err != nil {
				return nil, ErrPassphraseRequired
			}
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(vars[VarPassword]))
	}

	return &ssh.ClientConfig{
		User:            vars[VarUsername],
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         b.Timeout,
	}, nil
}

func dialContext(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// parseSubmanConsumed turns the block output of "subscription-manager
// list --consumed" into one entry per attached subscription. A
// "Subscription Name:" line opens an entry and the following "Serial:"
// line supplies its entitlement id.
func parseSubmanConsumed(out string) []map[string]string {
	var entries []map[string]string
	var current map[string]string
	for _, line := range strings.Split(out, "\n") {
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(field) {
		case "Subscription Name":
			if value == "" {
				current = nil
				continue
			}
			current = map[string]string{"name": value}
			entries = append(entries, current)
		case "Serial":
			if current != nil && value != "" {
				current["entitlement_id"] = value
			}
		}
	}
	return entries
}

func runCommand(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	if err := session.Run(cmd); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
