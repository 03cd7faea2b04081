package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"procsched/internal/config"
	"procsched/internal/sched"
	"procsched/internal/vm"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Bootstrap a scheduler, dispatch pid 1 once, and print its process listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			scheduler, err := config.New(cfg)
			if err != nil {
				return fmt.Errorf("build scheduler: %w", err)
			}

			if result := vm.Bootstrap(scheduler); result.Kind != sched.ResultPid {
				return fmt.Errorf("bootstrap: unexpected syscall result %+v", result)
			}

			decision := scheduler.Next()
			fmt.Printf("%s\n\n", decision)

			fmt.Printf("%-5s %-10s %-5s %-6s %-8s %-8s %s\n", "PID", "STATE", "PRI", "TOTAL", "SYSCALL", "EXECUTE", "EXTRA")
			for _, p := range scheduler.List() {
				t := p.Timings()
				fmt.Printf("%-5d %-10s %-5d %-6d %-8d %-8d %s\n", uint64(p.Pid()), p.State(), p.Priority(), t.Total, t.SyscallCount, t.Execution, p.Extra())
			}
			return nil
		},
	}
}
