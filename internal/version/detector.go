package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionValue     = "(devel)"
	vcsRevisionSettingConstant     = "vcs.revision"
	vcsModifiedSettingConstant     = "vcs.modified"
	vcsModifiedTrueValueConstant   = "true"
	revisionPrefixLengthConstant   = 12
	dirtySuffixConstant            = "-dirty"
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves application version strings.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector, reading the running binary's build info when no provider is given.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect resolves the version of the running binary.
func Detect() string {
	return NewDetector(Dependencies{}).Version()
}

// Version prefers the module version, then the VCS revision stamped at build time.
func (detector *Detector) Version() string {
	if detector == nil || detector.buildInfoProvider == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	if moduleVersion := moduleVersionFromBuildInfo(buildInfo); len(moduleVersion) > 0 {
		return moduleVersion
	}

	if revision := revisionFromBuildInfo(buildInfo); len(revision) > 0 {
		return revision
	}

	return unknownVersionFallbackConstant
}

func moduleVersionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) == 0 || strings.EqualFold(trimmedVersion, buildInfoDevelVersionValue) {
		return ""
	}
	return trimmedVersion
}

func revisionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	revision := ""
	modified := false
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case vcsRevisionSettingConstant:
			revision = strings.TrimSpace(setting.Value)
		case vcsModifiedSettingConstant:
			modified = setting.Value == vcsModifiedTrueValueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > revisionPrefixLengthConstant {
		revision = revision[:revisionPrefixLengthConstant]
	}
	if modified {
		revision += dirtySuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
