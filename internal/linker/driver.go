package linker

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// Driver invokes the external GHS toolchain (gbuild, elxr) the way the
// original tool shells out to it via subprocess.call.
type Driver struct {
	// GHSPath is the directory containing the gbuild/elxr executables.
	GHSPath string
}

// Build runs `gbuild -top <gpjPath>`, the compile step.
func (d Driver) Build(gpjPath string) error {
	cmd := exec.Command(filepath.Join(d.GHSPath, "gbuild"), "-top", gpjPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("linker: gbuild failed: %w\n%s", err, out)
	}
	return nil
}

// Link runs `elxr -T <symbolScript> -T <memoryScript> -o <outObj> <objFiles...>`,
// producing the single relocatable object the splice engine consumes.
func (d Driver) Link(symbolScriptPath, memoryScriptPath, outObjPath string, objFiles []string) error {
	args := []string{"-T", symbolScriptPath, "-T", memoryScriptPath, "-o", outObjPath}
	args = append(args, objFiles...)

	cmd := exec.Command(filepath.Join(d.GHSPath, "elxr"), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("linker: elxr failed: %w\n%s", err, out)
	}
	return nil
}
