package collectors

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hostprobe/hostprobe/internal/logging"
	"github.com/hostprobe/hostprobe/internal/metadata"
)

// CIDFunc reports the partition (container) id a process belongs to.
// Id 0 means the process runs in the global environment.
type CIDFunc func(pid int64) (int64, error)

// PartitionResolver maps a process to its workload partition. Membership
// comes from the platform probe; names come from a line-oriented index
// file with colon-separated "id:type:name:kernelId" records.
type PartitionResolver struct {
	IndexPath string
	CID       CIDFunc
	log       *slog.Logger
}

func NewPartitionResolver(indexPath string) *PartitionResolver {
	return &PartitionResolver{
		IndexPath: indexPath,
		CID:       platformCID,
		log:       logging.L("collector.partition"),
	}
}

// platformCID is the default probe. Hosts without a partition facility
// place every process in the global environment.
func platformCID(pid int64) (int64, error) { return 0, nil }

// Annotate appends partition membership attributes. A failed probe adds
// nothing; a nonzero id without an index entry still records membership.
func (r *PartitionResolver) Annotate(pid int64, res *metadata.Result) {
	cid, err := r.CID(pid)
	if err != nil {
		r.log.Debug("partition probe failed", "pid", pid, logging.KeyError, err)
		return
	}

	res.AddInt("partition_cid", cid)
	if cid == 0 {
		res.AddAttribute("is_container", "false")
		return
	}
	res.AddAttribute("is_container", "true")

	entry, ok := r.lookup(cid)
	if !ok {
		return
	}
	res.AddAttribute("partition_name", entry.name)
	res.AddAttribute("partition_id", entry.id)
	res.AddAttribute("partition_type", decodePartitionType(entry.typ))
}

type partitionEntry struct {
	id   string
	typ  string
	name string
}

func (r *PartitionResolver) lookup(cid int64) (partitionEntry, bool) {
	f, err := os.Open(r.IndexPath)
	if err != nil {
		r.log.Debug("partition index unavailable", "path", r.IndexPath, logging.KeyError, err)
		return partitionEntry{}, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ":")
		if len(parts) < 4 {
			continue
		}
		kernelID, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || kernelID != cid {
			continue
		}
		return partitionEntry{id: parts[0], typ: parts[1], name: parts[2]}, true
	}
	return partitionEntry{}, false
}

func decodePartitionType(code string) string {
	switch code {
	case "S":
		return "system"
	case "A":
		return "application"
	case "L":
		return "versioned"
	default:
		return code
	}
}
