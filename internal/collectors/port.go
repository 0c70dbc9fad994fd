package collectors

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hostprobe/hostprobe/internal/config"
	"github.com/hostprobe/hostprobe/internal/executor"
	"github.com/hostprobe/hostprobe/internal/logging"
	"github.com/hostprobe/hostprobe/internal/metadata"
	"github.com/hostprobe/hostprobe/internal/privilege"
)

// connection is one matched netstat row, plus whatever process
// attribution the socket-correlation pass recovered.
type connection struct {
	protocol      string
	localAddress  string
	localPort     string
	remoteAddress string
	remotePort    string
	state         string
	pid           int64
	processName   string
	user          string
}

// PortCollector enumerates connections touching a port by parsing
// netstat output, one pass per (transport, address family), then
// correlates sockets to processes through lsof. Everything beyond the
// port number itself is best-effort: a failing netstat invocation for
// one family simply contributes zero matches.
type PortCollector struct {
	cfg    *config.Config
	runner executor.Runner
	log    *slog.Logger

	// lsofCache keys by protocol tag so a matching pass invokes lsof
	// at most once per (port, protocol).
	lsofCache map[string]processMatch
}

type processMatch struct {
	name string
	pid  int64
	user string
	ok   bool
}

func NewPortCollector(cfg *config.Config, runner executor.Runner) *PortCollector {
	return &PortCollector{
		cfg:    cfg,
		runner: runner,
		log:    logging.L("collector.port"),
	}
}

func (c *PortCollector) QueryType() metadata.QueryType { return metadata.QueryPort }
func (c *PortCollector) Name() string                  { return "port" }

func (c *PortCollector) Collect(ctx context.Context, identifier string) *metadata.Result {
	port, ok := parsePort(identifier)
	if !ok {
		return metadata.NewErrorResult(metadata.QueryPort, identifier,
			"Invalid port number: "+identifier)
	}

	c.lsofCache = make(map[string]processMatch)
	proto := c.cfg.ProtocolFilter()

	if !privilege.IsElevated() {
		c.log.Debug("running unprivileged; socket attribution may be incomplete", "port", port)
	}

	var conns []connection
	if proto == metadata.ProtocolTCP || proto == metadata.ProtocolBoth {
		c.collectTransport(ctx, port, "tcp", &conns)
	}
	if proto == metadata.ProtocolUDP || proto == metadata.ProtocolBoth {
		c.collectTransport(ctx, port, "udp", &conns)
	}

	res := metadata.New(metadata.QueryPort, identifier)
	res.Success = true

	if len(conns) == 0 {
		res.AddAttribute("status", "no_connections_found")
		res.AddAttribute("port", identifier)
		return res
	}

	res.AddAttribute("port", identifier)
	res.AddInt("num_connections", int64(len(conns)))

	for i, conn := range conns {
		pfx := "connection_" + strconv.Itoa(i) + "_"
		res.AddAttribute(pfx+"protocol", conn.protocol)
		res.AddAttribute(pfx+"local_address", conn.localAddress)
		res.AddAttribute(pfx+"local_port", conn.localPort)
		res.AddAttribute(pfx+"remote_address", conn.remoteAddress)
		res.AddAttribute(pfx+"remote_port", conn.remotePort)
		res.AddAttribute(pfx+"state", conn.state)
		if conn.pid > 0 {
			res.AddInt(pfx+"pid", conn.pid)
		}
		if conn.processName != "" {
			res.AddAttribute(pfx+"process", conn.processName)
		}
		if conn.user != "" {
			res.AddAttribute(pfx+"user", conn.user)
		}
	}

	return res
}

func parsePort(s string) (int, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 || v > 65535 {
		return 0, false
	}
	return int(v), true
}

// collectTransport runs the IPv4 pass then the IPv6 pass for one
// transport. The IPv6 pass tags its connections with a "6" suffix
// (tcp6, udp6).
func (c *PortCollector) collectTransport(ctx context.Context, port int, transport string, conns *[]connection) {
	out, ok := c.runNetstat(ctx, "inet", transport, true)
	if ok {
		c.parseNetstat(ctx, out, port, transport, transport, conns)
	}

	out, ok = c.runNetstat(ctx, "inet6", transport, false)
	if ok {
		c.parseNetstat(ctx, out, port, transport+"6", transport, conns)
	}
}

// runNetstat invokes netstat -Aan for one address family, falling back
// once to the plain -an form when allowed. Failure of both forms yields
// no output, never an error.
func (c *PortCollector) runNetstat(ctx context.Context, family, transport string, fallback bool) ([]byte, bool) {
	out, err := c.runner.Run(ctx, c.cfg.NetstatPath, "-Aan", "-f", family)
	if err == nil {
		return out, true
	}
	c.log.Debug("netstat invocation failed", "family", family, "transport", transport, logging.KeyError, err)
	if !fallback {
		return nil, false
	}
	out, err = c.runner.Run(ctx, c.cfg.NetstatPath, "-an", "-f", family)
	if err != nil {
		return nil, false
	}
	return out, true
}

// parseNetstat scans tabular netstat output for rows touching port.
//
// Expected row shapes, socket handle optional:
//
//	f1000e0001891398 tcp4  0  0  *.22            *.*              LISTEN
//	tcp4             0     0  192.168.1.1.22  192.168.1.2.54321  ESTABLISHED
//
// A row is kept when its local or its foreign port equals the target,
// which catches both the listening side and connections established to
// a remote service on that port.
func (c *PortCollector) parseNetstat(ctx context.Context, output []byte, port int, protoTag, transport string, conns *[]connection) {
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" {
			continue
		}
		// Rows for other transports share the table; only the ones
		// naming this transport are candidates.
		if !strings.Contains(line, transport) {
			continue
		}

		tokens := strings.Fields(line)
		if len(tokens) < 6 {
			continue
		}

		offset := 0
		socketAddr := ""
		if isSocketHandle(tokens[0]) {
			socketAddr = tokens[0]
			offset = 1
		}
		if len(tokens) < offset+6 {
			continue
		}

		localAddr := tokens[offset+3]
		foreignAddr := tokens[offset+4]
		state := tokens[offset+5]

		localHost, localPort, haveLocal := splitHostPort(localAddr)
		if !haveLocal {
			continue
		}

		if !portEquals(localPort, port) {
			_, foreignPort, haveForeign := splitHostPort(foreignAddr)
			if !haveForeign || !portEquals(foreignPort, port) {
				continue
			}
		}

		conn := connection{
			protocol:     protoTag,
			localAddress: localHost,
			localPort:    localPort,
			state:        state,
		}
		if host, p, ok := splitHostPort(foreignAddr); ok {
			conn.remoteAddress = host
			conn.remotePort = p
		} else {
			conn.remoteAddress = foreignAddr
			conn.remotePort = "*"
		}

		// Attribution needs a socket handle as its anchor; rows from
		// the plain -an form stay unattributed.
		if socketAddr != "" {
			if m := c.findProcessForPort(ctx, port, protoTag); m.ok {
				conn.processName = m.name
				conn.pid = m.pid
				conn.user = m.user
			}
		}

		*conns = append(*conns, conn)
	}
}

// isSocketHandle reports whether a token is a kernel socket address
// rather than a protocol column: longer than 10 characters and made of
// hex digits only.
func isSocketHandle(tok string) bool {
	if len(tok) <= 10 {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// splitHostPort splits an address token on its last dot. Hosts may
// contain dots themselves; the port is always the final segment.
func splitHostPort(addr string) (host, port string, ok bool) {
	i := strings.LastIndexByte(addr, '.')
	if i < 0 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}

func portEquals(tok string, port int) bool {
	v, err := strconv.Atoi(tok)
	return err == nil && v == port
}

// findProcessForPort asks lsof which process holds the port, keeping
// the first row that names the protocol tag. The answer is cached per
// tag for the duration of one collection.
func (c *PortCollector) findProcessForPort(ctx context.Context, port int, protoTag string) processMatch {
	if m, ok := c.lsofCache[protoTag]; ok {
		return m
	}

	match := processMatch{}
	out, err := c.runner.Run(ctx, c.cfg.LsofPath, "-i", ":"+strconv.Itoa(port), "-n", "-P")
	if err != nil {
		c.log.Debug("lsof invocation failed", "port", port, logging.KeyError, err)
		c.lsofCache[protoTag] = match
		return match
	}

	lowerTag := strings.ToLower(protoTag)
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(line), lowerTag) {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < 3 || tokens[0] == "COMMAND" {
			continue
		}

		match.name = tokens[0]
		if pid, err := strconv.ParseInt(tokens[1], 10, 64); err == nil {
			match.pid = pid
		}
		match.user = tokens[2]
		match.ok = true
		break
	}

	c.lsofCache[protoTag] = match
	return match
}
