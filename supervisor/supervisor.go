// Package supervisor wires the kernel core together the way
// InstanceService/VirtualMachine do in the original host service: it
// owns one System Log, one host process-group container, the root
// Namespace, and the typed parameter table parsed from the command
// line, and exposes the New/Shutdown lifecycle named in spec.md §6 as
// the service-control boundary. Spawning the guest binary and
// generating syscall marshalling code are external collaborators (see
// spec.md §1); Supervisor only owns what's left once those are
// subtracted.
package supervisor

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/djp952/vm-linux-sub000/klevel"
	"github.com/djp952/vm-linux-sub000/klog"
	"github.com/djp952/vm-linux-sub000/namespace"
	"github.com/djp952/vm-linux-sub000/vfs"
	"github.com/djp952/vm-linux-sub000/vfs/rootfs"
)

// StartupError distinguishes the three fatal startup failures spec.md
// §4.8/§7 names (log, job container, root namespace) from any other
// error, so main() can map it to a non-zero exit code while still
// logging through whatever of the log/logger pair came up first.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string { return fmt.Sprintf("supervisor: %s: %v", e.Stage, e.Err) }
func (e *StartupError) Unwrap() error { return e.Err }

// Supervisor is the one process-wide object the program entry point
// constructs and tears down; no singleton pattern is needed (spec.md
// §9's "Global state" design note).
type Supervisor struct {
	Name   string
	Mode   Mode
	Log    *klog.Log
	Root   *namespace.Namespace
	Params *ParamTable
	Group  ProcessGroup

	logger *logrus.Logger
}

// Options controls Supervisor construction beyond what the command line
// itself supplies.
type Options struct {
	// Console, if non-nil, mirrors every klog write to it (the
	// -console[:name] operating mode's attached console).
	Console io.Writer
}

// New parses args (splitting off the mode switches with ParseMode and
// generating a fresh UUID name when none is given), builds the
// parameter table, and constructs the
// log, process group and root namespace in that order — the same order
// InstanceService::OnStart uses, and the order spec.md §4.8 and §7
// require: the log must exist before anything it would need to report a
// failure against does.
func New(args []string, opts Options) (*Supervisor, ParsedArgs, error) {
	mode, name, rest := ParseMode(args)
	if name == "" {
		name = uuid.NewString()
	}

	logger := logrus.New()
	table := defaultParamTable()
	parsed := ParseArgs(rest, table)
	LogInvalidArgs(logger, parsed.InvalidArgs)

	logBufLen, _ := table.Get("log_buf_len")
	if logBufLen < klog.MinBufferSize {
		logBufLen = klog.MinBufferSize
	}
	logLevelRaw, _ := table.Get("loglevel")
	defaultLevel := klevel.Level(logLevelRaw)

	log := klog.New(int(logBufLen), defaultLevel, opts.Console)

	group, err := NewProcessGroup()
	if err != nil {
		log.Write(0, klevel.Emergency, fmt.Sprintf("failed to create process group: %v", err))
		logger.WithField("component", "supervisor").WithError(err).Error("failed to create process group")
		return nil, parsed, &StartupError{Stage: "process group", Err: err}
	}

	root := namespace.New()
	if err := mountRoot(root); err != nil {
		log.Write(0, klevel.Emergency, fmt.Sprintf("failed to create root namespace: %v", err))
		logger.WithField("component", "supervisor").WithError(err).Error("failed to create root namespace")
		_ = group.Close()
		return nil, parsed, &StartupError{Stage: "root namespace", Err: err}
	}

	logger.WithFields(logrus.Fields{"component": "supervisor", "name": name, "mode": modeString(mode)}).Info("instance started")

	return &Supervisor{
		Name:   name,
		Mode:   mode,
		Log:    log,
		Root:   root,
		Params: table,
		Group:  group,
		logger: logger,
	}, parsed, nil
}

// mountRoot mounts a fresh RootFS at "/" in ns, the one mount the
// supervisor always creates before any file system arrives via the
// CPIO-loaded initramfs.
func mountRoot(ns *namespace.Namespace) error {
	fs := rootfs.New(rootfs.MountFlags)
	mnt, err := fs.Mount(rootfs.MountFlags, "")
	if err != nil {
		return err
	}
	ns.MountNS.Mount("/", mnt)
	return nil
}

func modeString(m Mode) string {
	switch m {
	case ModeService:
		return "service"
	case ModeConsole:
		return "console"
	default:
		return "headless"
	}
}

// Logger exposes the operator-facing structured logger, distinct from
// the guest-visible Log ring buffer, for subsystems that need to report
// their own operational state (mount table changes, driver errors).
func (s *Supervisor) Logger() *logrus.Logger { return s.logger }

// RootMount resolves the root namespace's "/" mount, the starting point
// every fresh process's path lookups anchor to.
func (s *Supervisor) RootMount() (vfs.Mount, bool) {
	mount, _, ok := s.Root.MountNS.Lookup("/")
	return mount, ok
}

// Shutdown terminates every guest process tracked by the process group
// and releases it, the same two steps InstanceService::OnStop performs
// against its job object.
func (s *Supervisor) Shutdown() error {
	s.logger.WithField("component", "supervisor").WithField("name", s.Name).Info("shutting down")
	if err := s.Group.TerminateAll(); err != nil {
		s.logger.WithField("component", "supervisor").WithError(err).Warn("error terminating guest processes")
	}
	return s.Group.Close()
}
