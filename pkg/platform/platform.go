package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/noqturne/noqturne/pkg/errors"
)

// Platform represents a target platform with OS and Architecture.
type Platform struct {
	OS   string `yaml:"os" json:"os"`
	Arch string `yaml:"arch" json:"arch"`
}

// CurrentPlatform returns the current platform (OS and architecture).
func CurrentPlatform() Platform {
	return Platform{
		OS:   NormalizeOS(runtime.GOOS),
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

// String returns a string representation of the platform.
func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// IsWindows reports whether p targets Windows.
func (p Platform) IsWindows() bool { return p.OS == OSWindows }

// NormalizeOS normalizes OS names to a common format.
func NormalizeOS(os string) string {
	os = strings.ToLower(os)
	switch os {
	case "darwin", "mac", "osx":
		return OSMacOS
	case "win", "windows":
		return OSWindows
	default:
		return os
	}
}

// NormalizeArch normalizes architecture names to a common format.
func NormalizeArch(arch string) string {
	arch = strings.ToLower(arch)
	switch arch {
	case "x86_64", "x64":
		return ArchAMD64
	case "x86", "i386", "i686":
		return Arch386
	case "aarch64":
		return ArchARM64
	default:
		return arch
	}
}

// ExeName appends the platform's executable suffix to base.
func (p Platform) ExeName(base string) string {
	if p.IsWindows() && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		return base + ".exe"
	}
	return base
}

// YtDlpAsset returns the name of the yt-dlp release asset for p. The asset is a
// standalone executable and is stored under this name in the tools directory.
func (p Platform) YtDlpAsset() (string, error) {
	switch p.OS {
	case OSWindows:
		return YtDlpAssetWindows, nil
	case OSMacOS:
		return YtDlpAssetMacOS, nil
	case OSLinux:
		switch p.Arch {
		case ArchAMD64:
			return YtDlpAssetLinux, nil
		case ArchARM64:
			return YtDlpAssetLinuxAarch64, nil
		}
	}
	return "", errors.Wrapf(errors.ErrUnsupportedPlatform, "yt-dlp on %s", p)
}

// FFmpegAsset returns the ffmpeg build archive name for p together with its
// extension ("zip" or "tar.xz").
func (p Platform) FFmpegAsset() (name, ext string, err error) {
	switch {
	case p.OS == OSWindows && p.Arch == ArchAMD64:
		return FFmpegAssetWin64, "zip", nil
	case p.OS == OSLinux && p.Arch == ArchAMD64:
		return FFmpegAssetLinux64, "tar.xz", nil
	case p.OS == OSLinux && p.Arch == ArchARM64:
		return FFmpegAssetLinuxArm64, "tar.xz", nil
	}
	return "", "", errors.Wrapf(errors.ErrUnsupportedPlatform, "ffmpeg builds on %s", p)
}

// PythonInterpreter returns the interpreter command used for the resolver script and pip.
func (p Platform) PythonInterpreter() string {
	if p.IsWindows() {
		return "python"
	}
	return "python3"
}
