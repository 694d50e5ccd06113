// Package uringblk implements a virtual block-storage service: devices
// with independent multi-queue I/O dispatch, pluggable backends, a
// binary admin protocol, and per-device statistics.
package uringblk

import (
	"github.com/ehrlich-b/go-uringblk/internal/admin"
	"github.com/ehrlich-b/go-uringblk/internal/interfaces"
	"github.com/ehrlich-b/go-uringblk/internal/queue"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Core types re-exported from the internal packages so embedders only
// import the root package.
type (
	Request    = queue.Request
	Completion = queue.Completion

	AdminCommand = admin.Command
	AdminResult  = admin.Result

	Op        = uapi.Op
	Status    = uapi.Status
	Stats     = uapi.Stats
	CmdHeader = uapi.CmdHeader
	Identify  = uapi.Identify
	Limits    = uapi.Limits
	Geometry  = uapi.Geometry

	Backend            = interfaces.Backend
	AsyncBackend       = interfaces.AsyncBackend
	AsyncResult        = interfaces.AsyncResult
	DiscardBackend     = interfaces.DiscardBackend
	WriteZeroesBackend = interfaces.WriteZeroesBackend
)

// I/O operation kinds.
const (
	OpRead        = uapi.OpRead
	OpWrite       = uapi.OpWrite
	OpFlush       = uapi.OpFlush
	OpDiscard     = uapi.OpDiscard
	OpWriteZeroes = uapi.OpWriteZeroes
)

// Status codes.
const (
	StatusOK                 = uapi.StatusOK
	StatusOutOfRange         = uapi.StatusOutOfRange
	StatusUnsupported        = uapi.StatusUnsupported
	StatusWouldBlock         = uapi.StatusWouldBlock
	StatusNoSpace            = uapi.StatusNoSpace
	StatusMediaError         = uapi.StatusMediaError
	StatusBackendUnavailable = uapi.StatusBackendUnavailable
	StatusIncompatibleABI    = uapi.StatusIncompatibleABI
	StatusMalformedCommand   = uapi.StatusMalformedCommand
	StatusPayloadTooLarge    = uapi.StatusPayloadTooLarge
	StatusPayloadTooSmall    = uapi.StatusPayloadTooSmall
	StatusInvalidArgument    = uapi.StatusInvalidArgument
	StatusCancelled          = uapi.StatusCancelled
)

// Feature bits.
const (
	FeatWriteCache  = uapi.FeatWriteCache
	FeatFUA         = uapi.FeatFUA
	FeatFlush       = uapi.FeatFlush
	FeatDiscard     = uapi.FeatDiscard
	FeatWriteZeroes = uapi.FeatWriteZeroes
	FeatZoned       = uapi.FeatZoned
	FeatPolling     = uapi.FeatPolling

	FeatSupportedMask = uapi.FeatSupportedMask
)

// Admin protocol identifiers.
const (
	AbiMajor = uapi.AbiMajor
	AbiMinor = uapi.AbiMinor

	CmdIdentify    = uapi.CmdIdentify
	CmdGetLimits   = uapi.CmdGetLimits
	CmdGetFeatures = uapi.CmdGetFeatures
	CmdSetFeatures = uapi.CmdSetFeatures
	CmdGetGeometry = uapi.CmdGetGeometry
	CmdGetStats    = uapi.CmdGetStats
)

// Wire codec helpers re-exported for embedders that speak the admin
// protocol over their own transport.
var (
	MarshalCmdHeader   = uapi.MarshalCmdHeader
	UnmarshalCmdHeader = uapi.UnmarshalCmdHeader
	UnmarshalIdentify  = uapi.UnmarshalIdentify
	UnmarshalLimits    = uapi.UnmarshalLimits
	UnmarshalGeometry  = uapi.UnmarshalGeometry
	UnmarshalStats     = uapi.UnmarshalStats
)
