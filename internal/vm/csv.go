package vm

import (
	"encoding/csv"
	"os"
	"strconv"
)

// WriteCSV captures a run's full trace as a machine-diffable golden output,
// one row per (iteration, process) pair, grounded on the teacher's
// EnableCSVLogging/csv.Writer use for snapshotting scheduler state. It is
// selected by the harness's WRITE_OUTPUT configuration flag.
func WriteCSV(path string, logs []Log) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"iteration", "decision", "pid", "state", "priority", "total", "syscall_count", "execution", "extra"}); err != nil {
		return err
	}

	for i, l := range logs {
		decision := l.Decision.String()
		if len(l.Processes) == 0 {
			if err := w.Write([]string{strconv.Itoa(i + 1), decision, "", "", "", "", "", "", ""}); err != nil {
				return err
			}
			continue
		}
		for _, p := range l.Processes {
			rec := []string{
				strconv.Itoa(i + 1),
				decision,
				strconv.FormatUint(uint64(p.Pid), 10),
				p.State.String(),
				strconv.Itoa(int(p.Priority)),
				strconv.Itoa(p.Timings.Total),
				strconv.Itoa(p.Timings.SyscallCount),
				strconv.Itoa(p.Timings.Execution),
				p.Extra,
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	return w.Error()
}
