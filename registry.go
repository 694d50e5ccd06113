package uringblk

import (
	"errors"
	"strings"
	"sync"

	"github.com/ehrlich-b/go-uringblk/backend"
	"github.com/ehrlich-b/go-uringblk/internal/config"
	"github.com/ehrlich-b/go-uringblk/internal/constants"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Registry owns a set of devices built from one configuration. Devices
// are fully independent; a failure creating one never tears down its
// siblings.
type Registry struct {
	mu      sync.RWMutex
	devices []*Device
	logger  *logging.Logger
}

// ParseDeviceList splits a comma-separated target list, trimming
// whitespace and dropping empty entries. Lists longer than max are
// truncated with a warning rather than rejected.
func ParseDeviceList(list string, max int, logger *logging.Logger) []string {
	if logger == nil {
		logger = logging.Default()
	}

	var targets []string
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		targets = append(targets, entry)
	}

	if max > 0 && len(targets) > max {
		logger.Warn("device list exceeds maximum, truncating",
			"requested", len(targets), "max", max)
		targets = targets[:max]
	}
	return targets
}

// NewRegistry creates devices per the configuration: a single
// memory-backed device, or one passthrough device per configured target.
// Targets that fail to open are logged and skipped; the registry fails
// only when no device could be created at all.
func NewRegistry(cfg config.Config, logger *logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.Default()
	}
	// Configs loaded through internal/config arrive validated; hand-built
	// ones get the package defaults for anything left zero.
	if cfg.CapacityMB <= 0 {
		cfg.CapacityMB = constants.DefaultCapacityMB
	}
	if cfg.MaxDevices <= 0 {
		cfg.MaxDevices = constants.DefaultMaxDevices
	}
	r := &Registry{logger: logger}

	params := DeviceParams{
		LogicalBlockSize: uint32(cfg.LogicalBlockSize),
		QueueCount:       cfg.NrHwQueues,
		QueueDepth:       cfg.QueueDepth,
		WriteCache:       cfg.WriteCache,
		EnableDiscard:    cfg.EnableDiscard,
		EnablePoll:       cfg.EnablePoll,
		Logger:           logger,
	}

	switch cfg.Backend {
	case "memory":
		params.ID = 0
		params.Backend = backend.NewMemory(int64(cfg.CapacityBytes()))
		dev, err := NewDevice(params)
		if err != nil {
			return nil, err
		}
		r.devices = append(r.devices, dev)

	case "passthrough":
		targets := ParseDeviceList(cfg.Devices, cfg.MaxDevices, logger)
		for i, target := range targets {
			b, err := backend.NewPassthrough(target, 0)
			if err != nil {
				logger.WithError(err).Error("skipping passthrough target", "target", target)
				continue
			}
			p := params
			p.ID = len(r.devices)
			p.Backend = b
			dev, err := NewDevice(p)
			if err != nil {
				logger.WithError(err).Error("skipping device", "target", target, "index", i)
				b.Close()
				continue
			}
			r.devices = append(r.devices, dev)
		}
		if len(r.devices) == 0 {
			return nil, NewError("registry", uapi.StatusBackendUnavailable, "no usable passthrough target")
		}

	default:
		return nil, NewError("registry", uapi.StatusInvalidArgument, "unknown backend kind "+cfg.Backend)
	}

	logger.Info("registry ready", "devices", len(r.devices), "backend", cfg.Backend)
	return r, nil
}

// Devices returns the managed devices.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Get returns the device with the given ID.
func (r *Registry) Get(id int) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

// Len returns the number of managed devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Close shuts every device down, collecting errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, d := range r.devices {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.devices = nil
	return errors.Join(errs...)
}
