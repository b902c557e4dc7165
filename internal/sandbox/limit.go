package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// limitEnv carries the address-space cap from Run into the wrapper process.
const limitEnv = "SEEDGRID_SANDBOX_AS_MB"

// ExecLimited must run first thing in main (and in TestMain of packages
// whose tests start capped children). In a process started by Run as a
// memory-cap wrapper it caps its own address space and execs the target, so
// the cap is in place before the target's first instruction. It returns
// immediately in any other process.
func ExecLimited() {
	v, ok := os.LookupEnv(limitEnv)
	if !ok {
		return
	}
	os.Unsetenv(limitEnv)
	mb, err := strconv.Atoi(v)
	if err != nil || len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "sandbox: bad wrapper invocation %q\n", v)
		os.Exit(127)
	}
	if err := limitSelf(mb); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: cannot cap memory: %v\n", err)
		os.Exit(127)
	}
	err = unix.Exec(os.Args[1], os.Args[1:], os.Environ())
	fmt.Fprintf(os.Stderr, "sandbox: exec %s: %v\n", os.Args[1], err)
	os.Exit(127)
}

// wrap rewrites a command so it starts under the ExecLimited wrapper.
func wrap(mb int, name string, args []string) (string, []string, []string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", nil, nil, err
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", nil, nil, err
	}
	return self, append([]string{path}, args...), []string{limitEnv + "=" + strconv.Itoa(mb)}, nil
}
