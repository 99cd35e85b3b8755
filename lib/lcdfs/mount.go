// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lcdfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/lcdfs/lib/clock"
	"github.com/bureau-foundation/lcdfs/lib/lcd"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// DefaultPollInterval is how often the keypad is sampled when the
// mount options leave the interval zero.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Device is the probed hardware's control channel.
	Device lcd.Device

	// PollInterval is the keypad sampling period. Zero uses
	// DefaultPollInterval.
	PollInterval time.Duration

	// ArmPanel enables probing of the arm control panel features
	// (leds, locked). With it disabled those files are absent even
	// on panel hardware.
	ArmPanel bool

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Splash writes the hostname to the display once mounted.
	Splash bool

	// Clock provides time for polling and freshness. If nil,
	// defaults to clock.Real().
	Clock clock.Clock

	// Logger receives diagnostic messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// Server is one mounted lcdfs instance.
type Server struct {
	fuseServer *fuse.Server
	state      *StateCache
	notifier   *Notifier
	logger     *slog.Logger

	unmountOnce sync.Once
	unmountErr  error
}

// Mount probes the device, builds the capability-gated tree, and
// mounts the filesystem. The caller must call Unmount on the returned
// Server. The mountpoint directory is created if it does not exist.
//
// A device that does not answer the probe fails the mount with an
// error wrapping ErrHardwareUnavailable; the filesystem never becomes
// visible in that case.
func Mount(options Options) (*Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if options.PollInterval == 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	probe, err := Probe(options.Device, options.ArmPanel, options.Logger)
	if err != nil {
		return nil, err
	}

	tree := BuildTree(probe.Capabilities)
	state := NewStateCache(options.Device, probe, options.Clock, options.Logger)

	var notifier *Notifier
	if probe.Capabilities.Has(CapKeypad) {
		notifier = NewNotifier(state.KeypadState, options.Clock, options.PollInterval, options.Logger)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{
		tree:     tree,
		state:    state,
		notifier: notifier,
		logger:   options.Logger,
	}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "lcdfs",
			Name:       "lcdfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	if notifier != nil {
		notifier.Start()
	}

	if options.Splash {
		if hostname, hostErr := os.Hostname(); hostErr == nil {
			if err := state.Write("display", []byte("\fhost: "+hostname)); err != nil {
				options.Logger.Warn("writing splash", "error", err)
			}
		}
	}

	options.Logger.Info("lcdfs mounted",
		"mountpoint", options.Mountpoint,
		"model", options.Device.Model(),
		"files", len(tree.Files()),
	)
	return &Server{
		fuseServer: server,
		state:      state,
		notifier:   notifier,
		logger:     options.Logger,
	}, nil
}

// Wait blocks until the filesystem is unmounted.
func (s *Server) Wait() { s.fuseServer.Wait() }

// Unmount detaches the filesystem, stops keypad polling, and waits
// for any in-flight hardware transaction before leaving the device
// dark (display cleared, backlight off). It is idempotent; later
// calls return the first call's error.
func (s *Server) Unmount() error {
	s.unmountOnce.Do(func() {
		s.unmountErr = s.fuseServer.Unmount()

		if s.notifier != nil {
			s.notifier.Stop()
		}
		s.state.Shutdown()

		s.logger.Info("lcdfs unmounted")
	})
	return s.unmountErr
}

// rootNode is the mount root; its children are the capability-gated
// virtual files, created once at mount time.
type rootNode struct {
	gofuse.Inode
	tree     MountTree
	state    *StateCache
	notifier *Notifier
	logger   *slog.Logger
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	for _, file := range r.tree.Files() {
		var node gofuse.InodeEmbedder
		if file.Kind == KindEvent {
			node = &eventNode{notifier: r.notifier}
		} else {
			node = &attrNode{file: file, state: r.state, logger: r.logger}
		}
		child := r.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
		r.AddChild(file.Name, child, true)
	}
}

// permBits maps an access mode to file permission bits.
func permBits(access AccessMode) uint32 {
	switch access {
	case ReadOnly:
		return 0o444
	case WriteOnly:
		return 0o222
	default:
		return 0o666
	}
}

// errnoFor translates adapter and validation errors into errnos:
// invalid payloads are EINVAL, everything the hardware refused or
// failed is EIO.
func errnoFor(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidValue):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// attrNode is one attribute file, backed by the state cache.
type attrNode struct {
	gofuse.Inode
	file   VirtualFile
	state  *StateCache
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*attrNode)(nil)
var _ gofuse.NodeGetattrer = (*attrNode)(nil)
var _ gofuse.NodeSetattrer = (*attrNode)(nil)
var _ gofuse.NodeOpener = (*attrNode)(nil)
var _ gofuse.NodeReader = (*attrNode)(nil)
var _ gofuse.NodeWriter = (*attrNode)(nil)

func (a *attrNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | permBits(a.file.Access)
	out.Size = uint64(a.state.Size(a.file.Name))
	if modified := a.state.ModTime(a.file.Name); !modified.IsZero() {
		out.SetTimes(nil, &modified, nil)
	}
	return 0
}

// Setattr accepts truncation as a no-op: every write replaces the
// whole content anyway, and shells open with O_TRUNC when
// redirecting into attribute files.
func (a *attrNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | permBits(a.file.Access)
	out.Size = uint64(a.state.Size(a.file.Name))
	return 0
}

func (a *attrNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	accessFlags := flags & syscall.O_ACCMODE
	wantsRead := accessFlags == syscall.O_RDONLY || accessFlags == syscall.O_RDWR
	wantsWrite := accessFlags == syscall.O_WRONLY || accessFlags == syscall.O_RDWR

	if wantsWrite && a.file.Access == ReadOnly {
		return nil, 0, syscall.EACCES
	}
	if wantsRead && a.file.Access == WriteOnly {
		return nil, 0, syscall.EACCES
	}

	// Content size changes with every write, so the kernel page
	// cache must stay out of the way.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (a *attrNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := a.state.Read(a.file.Name)
	if err != nil {
		a.logger.Error("read failed", "file", a.file.Name, "error", err)
		return nil, errnoFor(err)
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	data = data[off:]
	if len(data) > len(dest) {
		data = data[:len(dest)]
	}
	return fuse.ReadResultData(data), 0
}

// Write replaces the file content: attribute writes always describe
// the complete new value, so the offset is ignored.
func (a *attrNode) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if err := a.state.Write(a.file.Name, data); err != nil {
		if errors.Is(err, ErrInvalidValue) {
			a.logger.Debug("write rejected", "file", a.file.Name, "error", err)
		} else {
			a.logger.Error("write failed", "file", a.file.Name, "error", err)
		}
		return 0, errnoFor(err)
	}
	return uint32(len(data)), 0
}

// eventNode is the keys file. Its content is not stored anywhere: a
// read consumes the next key event, blocking until one arrives.
type eventNode struct {
	gofuse.Inode
	notifier *Notifier
}

var _ gofuse.InodeEmbedder = (*eventNode)(nil)
var _ gofuse.NodeGetattrer = (*eventNode)(nil)
var _ gofuse.NodeOpener = (*eventNode)(nil)

func (e *eventNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = 0
	return 0
}

func (e *eventNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	return &eventHandle{notifier: e.notifier, released: make(chan struct{})}, fuse.FOPEN_DIRECT_IO, 0
}

// eventHandle delivers at most one event per open descriptor: the
// first read blocks for an event, subsequent reads return EOF. Close
// while blocked abandons the wait without error.
type eventHandle struct {
	notifier *Notifier
	released chan struct{}

	releaseOnce sync.Once

	mu        sync.Mutex
	delivered bool
}

var _ gofuse.FileReader = (*eventHandle)(nil)
var _ gofuse.FileReleaser = (*eventHandle)(nil)

func (h *eventHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	done := h.delivered || off > 0
	h.mu.Unlock()
	if done {
		return fuse.ReadResultData(nil), 0
	}

	events, cancel := h.notifier.Wait()

	select {
	case event := <-events:
		h.mu.Lock()
		h.delivered = true
		h.mu.Unlock()

		data := []byte(strconv.Itoa(event.Keys) + "\n")
		if len(data) > len(dest) {
			data = data[:len(dest)]
		}
		return fuse.ReadResultData(data), 0

	case <-h.released:
		// Descriptor closed mid-wait: abandon without error. An
		// event that raced into our channel is requeued so it is
		// not lost.
		cancel()
		h.requeueRaced(events)
		return fuse.ReadResultData(nil), 0

	case <-ctx.Done():
		cancel()
		h.requeueRaced(events)
		return nil, syscall.EINTR
	}
}

func (h *eventHandle) requeueRaced(events <-chan Event) {
	select {
	case event := <-events:
		h.notifier.requeue(event)
	default:
	}
}

func (h *eventHandle) Release(ctx context.Context) syscall.Errno {
	h.releaseOnce.Do(func() { close(h.released) })
	return 0
}
