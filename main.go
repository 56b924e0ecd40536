package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/zkir-project/zkir/zkgo/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "zkir"
	app.Usage = "ZK bytecode runtime tool"
	app.Description = "Assembles, disassembles and executes field-bounded register machine programs."
	app.Commands = []*cli.Command{
		cmd.RunCommand,
		cmd.AssembleCommand,
		cmd.DisassembleCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v", err)
			os.Exit(1)
		}
	}
}
