package config

import (
	"github.com/Sumatoshi-tech/compactor/pkg/compact"
	"github.com/Sumatoshi-tech/compactor/pkg/compaction"
	"github.com/Sumatoshi-tech/compactor/pkg/estimate"
	"github.com/Sumatoshi-tech/compactor/pkg/scan"
)

// Compression defaults.
const (
	DefaultAlgorithm          = string(compact.DefaultAlgorithm)
	DefaultEstimatorAlgorithm = string(estimate.LZ4)
	DefaultThreshold          = compact.DefaultThreshold
	DefaultBlockSize          = estimate.DefaultBlockSize
	DefaultMarginOfError      = estimate.DefaultMarginOfError
	DefaultConfidence         = estimate.DefaultConfidenceLevel
	DefaultWholeFileLimit     = estimate.DefaultWholeFileLimit
)

// Scan defaults.
const (
	DefaultSmallFileThreshold = "4KiB"
	DefaultCheckInterval      = scan.DefaultCheckInterval
	DefaultScanStatusInterval = scan.DefaultStatusInterval
)

// Compaction defaults.
const (
	DefaultCompactionStatusInterval = compaction.DefaultStatusInterval
	DefaultFlushInterval            = compaction.DefaultFlushInterval
	DefaultResultsBuffer            = compaction.DefaultResultsBuffer
)

// Logging and checkpoint defaults.
const (
	DefaultLogLevel          = "info"
	DefaultCheckpointEnabled = true
)

// Directory names used below the user cache and home directories.
const (
	appDirName  = "compactor"
	homeDirName = ".compactor"
	configName  = ".compactor"
	envPrefix   = "COMPACTOR"
)
