// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips to the programmer",
	Long: `Send version requests to the programmer and time the answers.

This is useful for checking a flaky serial adapter or WebSocket bridge
before a long write: every request must be answered within the poll
budget, and the round-trip times show how much slack is left.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of requests to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between requests")
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	s, err := connect("ping")
	if err != nil {
		return err
	}
	defer s.Close()

	answered := 0
	var fastest, slowest, total time.Duration
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)
		v, rtt, err := s.exec.Ping()
		if err != nil {
			fmt.Println(errorStyle.Render("FAILED: " + err.Error()))
		} else {
			fmt.Printf("%s rtt=%v\n", v, rtt.Round(time.Microsecond))
			if answered == 0 || rtt < fastest {
				fastest = rtt
			}
			if rtt > slowest {
				slowest = rtt
			}
			total += rtt
			answered++
		}
		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- %s ping statistics ---\n", s.link)
	fmt.Printf("%d requests sent, %d answered, %.0f%% lost\n",
		pingCount, answered, float64(pingCount-answered)/float64(pingCount)*100)
	if answered > 0 {
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			fastest.Round(time.Microsecond),
			(total / time.Duration(answered)).Round(time.Microsecond),
			slowest.Round(time.Microsecond))
	}

	if answered < pingCount {
		fmt.Fprintln(os.Stderr, warningStyle.Render("Some requests went unanswered."))
		return fmt.Errorf("%d of %d requests unanswered", pingCount-answered, pingCount)
	}
	return nil
}
