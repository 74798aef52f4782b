package reader

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// resolveContainerPID reads /proc/<hostPID>/status looking for the NSpid
// line and returns the PID as seen from the process's own (innermost) PID
// namespace. NSpid lists one PID per namespace level, outermost first; a
// process not running inside a nested PID namespace reports only one
// value, in which case this returns 0 (no mapping to report).
func resolveContainerPID(hostPID int) int {
	return containerPIDFromProcRoot("/proc", hostPID)
}

func containerPIDFromProcRoot(procRoot string, hostPID int) int {
	f, err := os.Open(procRoot + "/" + strconv.Itoa(hostPID) + "/status")
	if err != nil {
		return 0
	}
	defer f.Close()

	return parseNSpid(f)
}

func parseNSpid(r io.Reader) int {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "NSpid:") {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, "NSpid:"))
		if len(fields) < 2 {
			return 0
		}

		innermost, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return 0
		}

		return innermost
	}

	return 0
}
