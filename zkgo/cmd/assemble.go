package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/zkir-project/zkir/zkgo/asm"
	"github.com/zkir-project/zkir/zkgo/zkir"
)

var (
	AssembleInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path to the assembly source file",
		TakesFile: true,
		Required:  true,
	}
	AssembleOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path to write the program image to",
		TakesFile: true,
		Required:  true,
	}
)

func Assemble(ctx *cli.Context) error {
	l := Logger(os.Stderr, log.LevelInfo)

	path := ctx.Path(AssembleInputFlag.Name)
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	prog, err := asm.Assemble(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := prog.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode program image: %w", err)
	}
	outPath := ctx.Path(AssembleOutputFlag.Name)
	if err := os.WriteFile(outPath, buf.Bytes(), OutFilePerm); err != nil {
		return fmt.Errorf("failed to write %q: %w", outPath, err)
	}

	l.Info("assembled program", "source", path, "output", outPath,
		"instructions", len(prog.Code), "imageBytes", buf.Len())
	return nil
}

var AssembleCommand = &cli.Command{
	Name:        "assemble",
	Usage:       "Assemble a source file into a program image",
	Description: "Translates a textual assembly listing into an executable program image.",
	Action:      Assemble,
	Flags: []cli.Flag{
		AssembleInputFlag,
		AssembleOutputFlag,
	},
}

var (
	DisassembleInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path to the program image to disassemble",
		TakesFile: true,
		Required:  true,
	}
	DisassembleOutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path to write the listing to, or '-' for stdout",
		TakesFile: true,
		Value:     "-",
	}
)

func Disassemble(ctx *cli.Context) error {
	path := ctx.Path(DisassembleInputFlag.Name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open program image: %w", err)
	}
	prog, err := zkir.LoadProgram(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("failed to load program image %q: %w", path, err)
	}

	listing := asm.Disassemble(prog)
	outPath := ctx.Path(DisassembleOutputFlag.Name)
	if outPath == "" || outPath == "-" {
		_, err = os.Stdout.WriteString(listing)
		return err
	}
	if err := os.WriteFile(outPath, []byte(listing), OutFilePerm); err != nil {
		return fmt.Errorf("failed to write %q: %w", outPath, err)
	}
	return nil
}

var DisassembleCommand = &cli.Command{
	Name:        "disassemble",
	Usage:       "Disassemble a program image into a listing",
	Description: "Decodes each instruction of a program image and prints a textual listing that can be re-assembled.",
	Action:      Disassemble,
	Flags: []cli.Flag{
		DisassembleInputFlag,
		DisassembleOutputFlag,
	},
}
