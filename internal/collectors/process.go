package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/hostprobe/hostprobe/internal/config"
	"github.com/hostprobe/hostprobe/internal/logging"
	"github.com/hostprobe/hostprobe/internal/metadata"
)

// ProcessCollector resolves a PID into identity, scheduling, memory,
// credential, open-file and partition-membership attributes. Only the
// initial process-table lookup is fatal; everything after it is
// best-effort and omitted on failure.
type ProcessCollector struct {
	cfg        *config.Config
	partitions *PartitionResolver
	log        *slog.Logger
}

func NewProcessCollector(cfg *config.Config) *ProcessCollector {
	return &ProcessCollector{
		cfg:        cfg,
		partitions: NewPartitionResolver(cfg.PartitionIndexPath),
		log:        logging.L("collector.process"),
	}
}

func (c *ProcessCollector) QueryType() metadata.QueryType { return metadata.QueryProcess }
func (c *ProcessCollector) Name() string                  { return "process" }

func (c *ProcessCollector) Collect(ctx context.Context, identifier string) *metadata.Result {
	pid, ok := parsePID(identifier)
	if !ok {
		return metadata.NewErrorResult(metadata.QueryProcess, identifier,
			"Invalid PID format: "+identifier)
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return metadata.NewErrorResult(metadata.QueryProcess, identifier,
			"Process not found or access denied for PID: "+identifier)
	}

	res := metadata.New(metadata.QueryProcess, identifier)
	c.collectBasicInfo(p, pid, res)
	res.Success = true

	c.collectExecutablePath(p, res)
	c.collectWorkingDirectory(p, res)
	c.collectCommandLine(p, res)
	c.collectCredentials(p, res)
	c.collectOpenFiles(pid, res)
	c.partitions.Annotate(pid, res)
	if c.cfg.CollectEnvironment {
		c.collectEnvironment(p, res)
	}

	return res
}

// parsePID accepts a positive base-10 integer that fits a 32-bit pid.
// Leading zeros are tolerated ("007" is pid 7).
func parsePID(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 || v > math.MaxInt32 {
		return 0, false
	}
	return v, true
}

func (c *ProcessCollector) collectBasicInfo(p *process.Process, pid int64, res *metadata.Result) {
	res.AddInt("pid", pid)
	if ppid, err := p.Ppid(); err == nil {
		res.AddInt("ppid", int64(ppid))
	}
	if pgid, err := unix.Getpgid(int(pid)); err == nil {
		res.AddInt("pgid", int64(pgid))
	}
	if sid, err := unix.Getsid(int(pid)); err == nil {
		res.AddInt("sid", int64(sid))
	}
	if name, err := p.Name(); err == nil {
		res.AddAttribute("comm", name)
	}

	uids, uerr := p.Uids()
	if uerr == nil && len(uids) > 0 {
		res.AddInt("uid", int64(uids[0]))
		res.AddAttribute("user", lookupUserName(uint32(uids[0])))
	}
	gids, gerr := p.Gids()
	if gerr == nil && len(gids) > 0 {
		res.AddInt("gid", int64(gids[0]))
		res.AddAttribute("group", lookupGroupName(uint32(gids[0])))
	}

	if statuses, err := p.Status(); err == nil && len(statuses) > 0 {
		res.AddAttribute("state", mapProcessState(statuses[0]))
	}

	flags, priority, haveStat := readSchedulerInfo(pid)
	if haveStat {
		res.AddInt("priority", priority)
	}
	if nice, err := p.Nice(); err == nil {
		res.AddInt("nice", int64(nice))
	}

	if times, err := p.Times(); err == nil {
		res.AddInt("cpu", int64(times.User+times.System))
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		res.AddUint("virtual_size_kb", mem.VMS/1024)
		res.AddUint("resident_size_kb", mem.RSS/1024)
	}
	if createdMS, err := p.CreateTime(); err == nil {
		res.AddAttribute("start_time", formatLocalTime(createdMS/1000))
	}
	if threads, err := p.NumThreads(); err == nil {
		res.AddInt("num_threads", int64(threads))
	}
	if haveStat {
		res.AddAttribute("flags", "0x"+strconv.FormatUint(flags, 16))
	}

	if tty, err := p.Terminal(); err == nil && tty != "" {
		res.AddAttribute("tty", tty)
	} else {
		res.AddAttribute("tty", "none")
	}
}

func (c *ProcessCollector) collectExecutablePath(p *process.Process, res *metadata.Result) {
	if exe, err := p.Exe(); err == nil && exe != "" {
		res.AddAttribute("exe_path", exe)
	}
}

func (c *ProcessCollector) collectWorkingDirectory(p *process.Process, res *metadata.Result) {
	if cwd, err := p.Cwd(); err == nil && cwd != "" {
		res.AddAttribute("cwd", cwd)
	}
}

func (c *ProcessCollector) collectCommandLine(p *process.Process, res *metadata.Result) {
	argv, err := p.CmdlineSlice()
	if err != nil || len(argv) == 0 {
		return
	}
	res.AddAttribute("cmdline", strings.Join(argv, " "))
}

func (c *ProcessCollector) collectCredentials(p *process.Process, res *metadata.Result) {
	uids, uerr := p.Uids()
	gids, gerr := p.Gids()
	if uerr != nil || gerr != nil || len(uids) < 3 || len(gids) < 3 {
		return
	}
	// Slices are ordered real, effective, saved.
	res.AddInt("euid", int64(uids[1]))
	res.AddInt("egid", int64(gids[1]))
	res.AddInt("ruid", int64(uids[0]))
	res.AddInt("rgid", int64(gids[0]))
	res.AddInt("suid", int64(uids[2]))
	res.AddInt("sgid", int64(gids[2]))
	res.AddAttribute("effective_user", lookupUserName(uint32(uids[1])))
}

// collectOpenFiles lists /proc/<pid>/fd entries as "fd:target", or the
// bare descriptor number when the link is unreadable. Capped at
// MaxOpenFiles so a leaky process cannot balloon the record.
func (c *ProcessCollector) collectOpenFiles(pid int64, res *metadata.Result) {
	fdDir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		c.log.Debug("open file enumeration unavailable", "pid", pid, logging.KeyError, err)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		a, _ := strconv.Atoi(entries[i].Name())
		b, _ := strconv.Atoi(entries[j].Name())
		return a < b
	})

	var open []string
	for _, e := range entries {
		if len(open) >= c.cfg.MaxOpenFiles {
			break
		}
		target, err := os.Readlink(fdDir + "/" + e.Name())
		if err != nil || target == "" {
			open = append(open, e.Name())
			continue
		}
		open = append(open, e.Name()+":"+target)
	}
	if len(open) > 0 {
		res.AddList("open_files", open)
	}
}

func (c *ProcessCollector) collectEnvironment(p *process.Process, res *metadata.Result) {
	env, err := p.Environ()
	if err != nil || len(env) == 0 {
		return
	}
	res.AddList("environment", env)
}

// mapProcessState folds platform status strings into the closed state
// vocabulary none/idle/zombie/stopped/active/swapped.
func mapProcessState(status string) string {
	switch strings.ToLower(status) {
	case process.Running:
		return "active"
	case process.Sleep, process.Idle:
		return "idle"
	case process.Stop:
		return "stopped"
	case process.Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// readSchedulerInfo pulls kernel flags and priority from the stat view
// of procfs. The command field may contain spaces, so fields are counted
// from the closing parenthesis.
func readSchedulerInfo(pid int64) (flags uint64, priority int64, ok bool) {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, 0, false
	}
	end := strings.LastIndexByte(string(raw), ')')
	if end < 0 {
		return 0, 0, false
	}
	fields := strings.Fields(string(raw[end+1:]))
	// After the command: state, ppid, pgrp, session, tty_nr, tpgid,
	// flags (index 6) ... priority (index 15).
	if len(fields) < 16 {
		return 0, 0, false
	}
	flags, ferr := strconv.ParseUint(fields[6], 10, 64)
	priority, perr := strconv.ParseInt(fields[15], 10, 64)
	if ferr != nil || perr != nil {
		return 0, 0, false
	}
	return flags, priority, true
}
