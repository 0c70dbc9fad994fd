package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hostprobe/hostprobe/internal/config"
	"github.com/hostprobe/hostprobe/internal/logging"
	"github.com/hostprobe/hostprobe/internal/metadata"
)

// FileCollector inspects a single filesystem path via lstat/stat and
// reports type, size, permissions, ownership, timestamps and the current
// process's access rights. The path itself is never followed unless it
// is a symlink whose target metadata we also want.
type FileCollector struct {
	cfg *config.Config
	log *slog.Logger
}

func NewFileCollector(cfg *config.Config) *FileCollector {
	return &FileCollector{cfg: cfg, log: logging.L("collector.file")}
}

func (c *FileCollector) QueryType() metadata.QueryType { return metadata.QueryFile }
func (c *FileCollector) Name() string                  { return "file" }

func (c *FileCollector) Collect(ctx context.Context, identifier string) *metadata.Result {
	if identifier == "" {
		return metadata.NewErrorResult(metadata.QueryFile, identifier, "Empty file path")
	}

	res := metadata.New(metadata.QueryFile, identifier)

	var lst unix.Stat_t
	if err := unix.Lstat(identifier, &lst); err != nil {
		return metadata.NewErrorResult(metadata.QueryFile, identifier,
			fmt.Sprintf("Cannot stat file '%s': %v", identifier, err))
	}

	// st carries the attributes we report for size/ownership/times. For a
	// symlink that resolves, that is the target; for anything else (or a
	// broken link) it is the lstat data itself.
	st := lst
	if lst.Mode&unix.S_IFMT == unix.S_IFLNK {
		var tst unix.Stat_t
		if err := unix.Stat(identifier, &tst); err != nil {
			res.AddAttribute("symlink_broken", "true")
			c.log.Debug("symlink target unreachable", "path", identifier, logging.KeyError, err)
		} else {
			st = tst
		}
		c.collectSymlinkInfo(identifier, res)
	}

	res.AddAttribute("type", fileTypeName(uint32(lst.Mode)))
	res.AddUint("size", uint64(st.Size))
	res.AddUint("device", uint64(st.Dev))
	res.AddUint("inode", uint64(st.Ino))
	res.AddUint("nlink", uint64(st.Nlink))

	mode := uint32(st.Mode)
	res.AddAttribute("mode_octal", "0"+strconv.FormatUint(uint64(mode&07777), 8))
	res.AddAttribute("mode_symbolic", modeSymbolic(mode))

	if mode&unix.S_ISUID != 0 {
		res.AddAttribute("setuid", "true")
	}
	if mode&unix.S_ISGID != 0 {
		res.AddAttribute("setgid", "true")
	}
	if mode&unix.S_ISVTX != 0 {
		res.AddAttribute("sticky", "true")
	}

	res.AddInt("uid", int64(st.Uid))
	res.AddAttribute("owner", lookupUserName(st.Uid))
	res.AddInt("gid", int64(st.Gid))
	res.AddAttribute("group", lookupGroupName(st.Gid))

	atime, mtime, ctime := statTimes(&st)
	res.AddAttribute("access_time", formatLocalTime(atime))
	res.AddAttribute("modify_time", formatLocalTime(mtime))
	res.AddAttribute("change_time", formatLocalTime(ctime))
	res.AddInt("atime_epoch", atime)
	res.AddInt("mtime_epoch", mtime)
	res.AddInt("ctime_epoch", ctime)

	res.AddInt("block_size", int64(st.Blksize))
	res.AddInt("blocks", int64(st.Blocks))

	if ft := mode & unix.S_IFMT; ft == unix.S_IFBLK || ft == unix.S_IFCHR {
		res.AddInt("rdev_major", int64(unix.Major(uint64(st.Rdev))))
		res.AddInt("rdev_minor", int64(unix.Minor(uint64(st.Rdev))))
	}

	res.Success = true

	c.collectAccessInfo(identifier, res)
	return res
}

func (c *FileCollector) collectSymlinkInfo(path string, res *metadata.Result) {
	res.AddAttribute("is_symlink", "true")

	target, err := os.Readlink(path)
	if err != nil || target == "" {
		res.AddAttribute("symlink_target", "unreadable")
		return
	}
	res.AddAttribute("symlink_target", target)
	if target[0] == '/' {
		res.AddAttribute("symlink_type", "absolute")
	} else {
		res.AddAttribute("symlink_type", "relative")
	}
}

func (c *FileCollector) collectAccessInfo(path string, res *metadata.Result) {
	res.AddAttribute("current_user_readable", boolString(unix.Access(path, unix.R_OK) == nil))
	res.AddAttribute("current_user_writable", boolString(unix.Access(path, unix.W_OK) == nil))
	res.AddAttribute("current_user_executable", boolString(unix.Access(path, unix.X_OK) == nil))
}

func fileTypeName(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return "regular"
	case unix.S_IFDIR:
		return "directory"
	case unix.S_IFLNK:
		return "symlink"
	case unix.S_IFBLK:
		return "block_device"
	case unix.S_IFCHR:
		return "character_device"
	case unix.S_IFIFO:
		return "fifo"
	case unix.S_IFSOCK:
		return "socket"
	default:
		return "unknown"
	}
}

// modeSymbolic renders the nine permission characters, folding the
// setuid/setgid/sticky bits into the execute positions (s/S, t/T).
func modeSymbolic(mode uint32) string {
	var b [9]byte

	set := func(i int, bit uint32, ch byte) {
		if mode&bit != 0 {
			b[i] = ch
		} else {
			b[i] = '-'
		}
	}
	exec := func(i int, xbit, special uint32, lower, upper byte) {
		switch {
		case mode&special != 0 && mode&xbit != 0:
			b[i] = lower
		case mode&special != 0:
			b[i] = upper
		case mode&xbit != 0:
			b[i] = 'x'
		default:
			b[i] = '-'
		}
	}

	set(0, unix.S_IRUSR, 'r')
	set(1, unix.S_IWUSR, 'w')
	exec(2, unix.S_IXUSR, unix.S_ISUID, 's', 'S')
	set(3, unix.S_IRGRP, 'r')
	set(4, unix.S_IWGRP, 'w')
	exec(5, unix.S_IXGRP, unix.S_ISGID, 's', 'S')
	set(6, unix.S_IROTH, 'r')
	set(7, unix.S_IWOTH, 'w')
	exec(8, unix.S_IXOTH, unix.S_ISVTX, 't', 'T')

	return string(b[:])
}

func formatLocalTime(epoch int64) string {
	return time.Unix(epoch, 0).Format("2006-01-02T15:04:05")
}

func lookupUserName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func lookupGroupName(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return "unknown"
	}
	return g.Name
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
