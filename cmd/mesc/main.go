// Command mesc is the CLI front end for the mes bytecode toolkit: decompile
// a .mes file to structured pseudo-source, re-assemble a parsed .mes file
// back to bytes, or apply a text-substitution file to a .mes file.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/nunuhara/mesc/diag"
	"github.com/nunuhara/mesc/game"
	"github.com/nunuhara/mesc/mes"
)

func main() {
	app := &cli.App{
		Name:  "mesc",
		Usage: "AI5WIN/AIWIN .mes bytecode toolkit",
		Commands: []*cli.Command{
			decompileCommand(),
			asmCommand(),
			substCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mesc:", err)
		os.Exit(1)
	}
}

var gameFlag = &cli.StringFlag{
	Name:     "game",
	Aliases:  []string{"g"},
	Usage:    "game this file belongs to (a game slug, e.g. yuno)",
	Required: true,
}

func resolveGame(c *cli.Context) (game.Context, error) {
	id, ok := game.ParseID(c.String("game"))
	if !ok {
		return game.Context{}, fmt.Errorf("unknown game %q", c.String("game"))
	}
	return game.NewContext(id), nil
}

func decompileCommand() *cli.Command {
	return &cli.Command{
		Name:      "decompile",
		Usage:     "parse a .mes file and print reconstructed pseudo-source",
		ArgsUsage: "<input.mes> [output.smes]",
		Flags: []cli.Flag{
			gameFlag,
			&cli.BoolFlag{Name: "flat", Usage: "print the flat statement list instead of reconstructing structured control flow"},
		},
		Action: func(c *cli.Context) error {
			ctx, err := resolveGame(c)
			if err != nil {
				return err
			}
			if c.Args().Len() < 1 {
				return fmt.Errorf("missing input file")
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			h := diag.New()
			stmts, err := mes.ParseStatements(data, ctx, h)
			if err != nil {
				return fmt.Errorf("parsing: %w", err)
			}

			var out strings.Builder
			if c.Bool("flat") {
				for _, s := range stmts {
					mes.PrintAsmStatement(s, &out, 0)
				}
			} else {
				toplevel, err := mes.BuildCFG(ctx, stmts)
				if err != nil {
					return fmt.Errorf("building control-flow graph: %w", err)
				}
				ast, err := mes.BuildAST(ctx, toplevel)
				if err != nil {
					return fmt.Errorf("reconstructing syntax tree: %w", err)
				}
				if err := mes.SimplifyAST(ast); err != nil {
					return fmt.Errorf("simplifying syntax tree: %w", err)
				}
				mes.PrintAST(ast, &out, 0)
			}

			return writeOutput(c.Args().Get(1), out.String())
		},
	}
}

func asmCommand() *cli.Command {
	return &cli.Command{
		Name:      "assemble",
		Usage:     "reassemble a previously parsed statement list (round-trip check)",
		ArgsUsage: "<input.mes> <output.mes>",
		Flags:     []cli.Flag{gameFlag},
		Action: func(c *cli.Context) error {
			ctx, err := resolveGame(c)
			if err != nil {
				return err
			}
			if c.Args().Len() < 2 {
				return fmt.Errorf("usage: mesc assemble -g <game> <input.mes> <output.mes>")
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			h := diag.New()
			stmts, err := mes.ParseStatements(data, ctx, h)
			if err != nil {
				return fmt.Errorf("parsing: %w", err)
			}
			out, err := mes.Assemble(ctx, stmts)
			if err != nil {
				return fmt.Errorf("assembling: %w", err)
			}
			return os.WriteFile(c.Args().Get(1), out, 0644)
		},
	}
}

func substCommand() *cli.Command {
	return &cli.Command{
		Name:      "subst",
		Usage:     "apply a text-substitution file to a .mes file",
		ArgsUsage: "<input.mes> <subs.txt> <output.mes>",
		Flags:     []cli.Flag{gameFlag},
		Action: func(c *cli.Context) error {
			ctx, err := resolveGame(c)
			if err != nil {
				return err
			}
			if c.Args().Len() < 3 {
				return fmt.Errorf("usage: mesc subst -g <game> <input.mes> <subs.txt> <output.mes>")
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			subFile, err := os.Open(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("opening substitution file: %w", err)
			}
			defer subFile.Close()

			h := diag.New()
			stmts, err := mes.ParseStatements(data, ctx, h)
			if err != nil {
				return fmt.Errorf("parsing: %w", err)
			}
			subs, err := mes.ParseTextSubstitutions(subFile, h)
			if err != nil {
				return fmt.Errorf("parsing substitutions: %w", err)
			}
			newStmts, err := mes.SubstituteText(ctx, stmts, subs, h)
			if err != nil {
				return fmt.Errorf("substituting text: %w", err)
			}
			out, err := mes.Assemble(ctx, newStmts)
			if err != nil {
				return fmt.Errorf("assembling: %w", err)
			}
			return os.WriteFile(c.Args().Get(2), out, 0644)
		},
	}
}

func writeOutput(path, text string) error {
	if path == "" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}
