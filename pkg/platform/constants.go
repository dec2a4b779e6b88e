// Package platform detects the host operating system and architecture and maps them
// onto the executable names and release assets of the provisioned tools.
package platform

const (
	// OSWindows represents the Windows operating system.
	OSWindows = "windows"
	// OSLinux represents the Linux operating system.
	OSLinux = "linux"
	// OSMacOS represents macOS. runtime.GOOS reports it as "darwin".
	OSMacOS = "macos"

	// ArchAMD64 represents the AMD64 (x86_64) architecture.
	ArchAMD64 = "amd64"
	// Arch386 represents the 32-bit x86 architecture.
	Arch386 = "386"
	// ArchARM64 represents the ARM64 (AArch64) architecture.
	ArchARM64 = "arm64"
)

// Release asset names published by the yt-dlp project.
const (
	YtDlpAssetWindows      = "yt-dlp.exe"
	YtDlpAssetLinux        = "yt-dlp_linux"
	YtDlpAssetLinuxAarch64 = "yt-dlp_linux_aarch64"
	YtDlpAssetMacOS        = "yt-dlp_macos"
)

// Build archives published by BtbN/FFmpeg-Builds.
const (
	FFmpegAssetWin64      = "ffmpeg-master-latest-win64-gpl.zip"
	FFmpegAssetLinux64    = "ffmpeg-master-latest-linux64-gpl.tar.xz"
	FFmpegAssetLinuxArm64 = "ffmpeg-master-latest-linuxarm64-gpl.tar.xz"
)
