package constants

// Default configuration constants
const (
	// DefaultQueueDepth is the default I/O queue depth per queue
	DefaultQueueDepth = 1024

	// DefaultNumQueues is the default number of hardware dispatch queues
	DefaultNumQueues = 4

	// DefaultLogicalBlockSize is the default logical block size in bytes
	DefaultLogicalBlockSize = 512

	// DefaultCapacityMB is the default device capacity in MiB
	DefaultCapacityMB = 1024

	// DefaultMaxDevices caps how many devices a registry will create
	DefaultMaxDevices = 16

	// DefaultDiscardGranularity is the default discard granularity in bytes
	DefaultDiscardGranularity = 4096
)

// Device identity strings reported by Identify.
const (
	ModelName       = "uringblk Virtual Device"
	FirmwareVersion = "v1.0.0"
)
