package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"golang.org/x/arch/ppc64/ppc64asm"

	"github.com/zboralski/clpc/cmd/clpc/ui"
	"github.com/zboralski/clpc/internal/addrmap"
	"github.com/zboralski/clpc/internal/build"
	"github.com/zboralski/clpc/internal/buildserver"
	clog "github.com/zboralski/clpc/internal/log"
	"github.com/zboralski/clpc/internal/project"
	"github.com/zboralski/clpc/internal/ui/colorize"
)

var (
	projectPath string
	targetName  string
	platform    string
	ghsPath     string
	rpxToolPath string
	verify      bool
	debug       bool
	serveAddr   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clpc",
		Short: "Build and patch Wii U RPX targets from a CLPC project",
		Long: `clpc resolves a project's target chain, drives the GHS toolchain to
compile and link the target's modules, then either splices the linked
object into a base RPX and applies its hooks (Emulator) or writes raw
Code/Data/Patches output for a CafeLoader-hosted run.

Run without --project for an interactive prompt; pass --project/--target/
--platform for scripted or CI use.`,
		RunE: runBuild,
	}

	rootCmd.PersistentFlags().StringVar(&projectPath, "project", "", "path to project.yaml")
	rootCmd.PersistentFlags().StringVar(&targetName, "target", "", "target name to build")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "emulator", "build platform: emulator|cafeloader")
	rootCmd.PersistentFlags().StringVar(&ghsPath, "ghs", "", "path to the GHS Multi toolchain")
	rootCmd.PersistentFlags().StringVar(&rpxToolPath, "rpxtool", "wiiurpxtool", "path to the wiiurpxtool binary")
	rootCmd.PersistentFlags().BoolVar(&verify, "verify-hooks", false, "run the Unicorn-based post-patch hook sanity check")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose structured logging")
	rootCmd.PersistentFlags().StringVar(&serveAddr, "serve", "", "also expose build progress over a websocket at this address, e.g. :8099")

	rootCmd.AddCommand(describeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parsePlatform(s string) (build.Platform, error) {
	switch strings.ToLower(s) {
	case "emulator", "":
		return build.Emulator, nil
	case "cafeloader", "cfl":
		return build.CafeLoader, nil
	}
	return 0, fmt.Errorf("unknown platform %q (want emulator|cafeloader)", s)
}

// unimplementedGrammar backs project.Collaborators for the address-map and
// symbol-map token grammars, which this repo deliberately treats as an
// external collaborator (see DESIGN.md) rather than reimplementing.
// Integrators supply their own parser by constructing project.Collaborators
// directly and calling project.FromYaml themselves; this CLI's default
// wiring only covers projects that need neither file.
var unimplementedGrammar = project.Collaborators{
	ParseAddrMap: func(path string) (addrmap.Document, error) {
		return addrmap.Document{}, fmt.Errorf("clpc: no address-map parser configured (tried %s)", path)
	},
	ParseSymbolMap: func(path string) (map[string]uint32, error) {
		return nil, fmt.Errorf("clpc: no symbol-map parser configured (tried %s)", path)
	},
}

func runBuild(cmd *cobra.Command, args []string) error {
	clog.Init(debug)
	logger := clog.L

	path := projectPath
	if path == "" {
		entered, err := ui.PromptForPath("Enter project.yaml path:", "/path/to/project.yaml")
		if err != nil {
			return err
		}
		path = entered
	}

	proj, err := project.FromYaml(path, unimplementedGrammar)
	if err != nil {
		return fmt.Errorf("clpc: loading project: %w", err)
	}

	tgt := targetName
	if tgt == "" {
		if len(proj.Targets) != 1 {
			return fmt.Errorf("clpc: --target is required (project declares %d targets)", len(proj.Targets))
		}
		for name := range proj.Targets {
			tgt = name
		}
	}

	plat, err := parsePlatform(platform)
	if err != nil {
		return err
	}

	var srv *buildserver.Server
	if serveAddr != "" {
		srv = buildserver.New()
		go func() {
			if err := srv.ListenAndServe(serveAddr); err != nil {
				logger.Warn("build progress server stopped: " + err.Error())
			}
		}()
	}

	orch := &build.Orchestrator{
		Proj: proj,
		Opts: build.Options{GHSPath: ghsPath, RPXToolPath: rpxToolPath, Verify: verify},
		Log:  logger,
		Warn: func(msg string) { fmt.Fprintln(os.Stderr, "warning:", msg) },
	}

	prog := ui.NewProgressProgram(fmt.Sprintf("%s (%s)", tgt, platform))
	orch.StageObserver = func(target, stage string) {
		prog.Send(ui.StageMsg(stage))
		if srv != nil {
			srv.Observe(target, stage)
		}
	}

	var artifact *build.Artifact
	var buildErr error
	go func() {
		artifact, buildErr = orch.Build(tgt, plat)
		prog.Send(ui.DoneMsg{Err: buildErr})
	}()

	if err := prog.Run(); err != nil {
		return err
	}
	if buildErr != nil {
		return buildErr
	}

	if artifact.RPXPath != "" {
		fmt.Println("wrote", artifact.RPXPath)
	}
	if artifact.OutDir != "" {
		fmt.Println("wrote", artifact.OutDir)
	}
	return nil
}

func describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <hex-bytes>",
		Short: "Disassemble and color-print PowerPC hook bytes",
		Long: `describe decodes one or more 32-bit big-endian PowerPC words (as produced
by a hook's Bytes method) and prints each instruction, colorized the same
way a trace would be.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[0]), "0x"))
			if err != nil {
				return fmt.Errorf("clpc: decoding hex argument: %w", err)
			}
			if len(raw)%4 != 0 {
				return fmt.Errorf("clpc: expected a whole number of 32-bit words, got %d bytes", len(raw))
			}

			for off := 0; off < len(raw); off += 4 {
				word := raw[off : off+4]
				inst, err := ppc64asm.Decode(word, binary.BigEndian)
				text := fmt.Sprintf("%08X", binary.BigEndian.Uint32(word))
				if err == nil {
					text = inst.String()
				}
				fmt.Printf("%s  %s\n", colorize.Address(uint64(off)), colorize.Instruction(text))
			}
			return nil
		},
	}
	return cmd
}
