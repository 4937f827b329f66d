package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/watchzerg/magnet-picker-sub000/internal/app"
)

var cfgFileName string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "magnetpicker: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magnetpicker",
		Short: "Score and pick magnet links from saved listing pages",
		Long: `magnetpicker reads saved listing pages, scores every magnet link found on them with an
ordered list of rules and picks the best few by score and size.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgFileName, "config", "c", "config.yml", "Path to config file")
	cmd.AddCommand(
		newServeCmd(),
		newPickCmd(),
		newValidateCmd(),
	)

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API. SIGUSR1 rescans and picks, SIGUSR2 exports rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			serve(cfgFileName)

			return nil
		},
	}
}

func serve(cfgFileName string) {
	app := app.New(cfgFileName)
	app.Start()

	c := make(chan os.Signal, 1)
	done := make(chan struct{})

	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(c)

	go func() {
		defer close(done)

		for sig := range c {
			switch sig {
			case syscall.SIGUSR1:
				go app.Rescan()
			case syscall.SIGUSR2:
				go app.Export()
			case syscall.SIGTERM, syscall.SIGINT:
				fmt.Println("Received termination signal. Shutting down...")

				return
			}
		}
	}()

	<-done
	app.Stop()
	time.Sleep(time.Second)
	fmt.Println("done")
}
