//go:build !unix

package process

import "os/exec"

// setProcessGroup keeps the default cancellation, which kills the child only.
func setProcessGroup(*exec.Cmd) {}
