/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: simulate.go
Description: Simulation command for the CrashGuard CLI. Raises a synthetic failure
through the full capture/persist/deliver path, exercising collectors, the report
store and the configured senders end to end. Useful for validating a deployment's
collector endpoint and archive before shipping.
*/

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kleascm/crashguard/pkg/collect"
)

// RunSimulate raises a synthetic failure through the full engine
func RunSimulate(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logger.Close()

	cfg, err := createEngineConfig()
	if err != nil {
		return err
	}
	reporter, err := buildReporter(cfg, logger.GetLogger())
	if err != nil {
		return err
	}

	reporter.PutCustomData("origin", "simulate command")

	message := viper.GetString("simulate_message")
	if message == "" {
		message = "simulated failure"
	}
	failure := fmt.Errorf("%s: %w", message, errors.New("synthetic root cause"))
	logger.LogCrash("synthetic", failure.Error(), map[string]interface{}{
		"origin": "simulate command",
	})

	if viper.GetBool("simulate_panic") {
		// Route a recovered panic through the silent path so the CLI
		// process survives to report the outcome.
		func() {
			defer func() {
				if value := recover(); value != nil {
					w := reporter.HandleSilentError(collect.RecoveredPanic(value))
					if w != nil {
						w.Wait(cfg.ShutdownFlushTimeout)
					}
				}
			}()
			panic(message)
		}()
		fmt.Println("Simulated panic captured and dispatched.")
		return nil
	}

	w := reporter.HandleSilentError(failure)
	if w != nil && !w.Wait(cfg.ShutdownFlushTimeout) {
		return fmt.Errorf("delivery worker did not finish in time")
	}
	fmt.Println("Simulated failure captured and dispatched.")
	return nil
}
