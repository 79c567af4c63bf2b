package main

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/pleimann/camel-keys/internal/cmd"
	"github.com/pleimann/camel-keys/internal/configpaths"
	"github.com/pleimann/camel-keys/internal/log"
	"github.com/pleimann/camel-keys/internal/ui"
)

func main() {
	yamlPaths, tomlPaths := configpaths.CLICandidatePaths(findCLIConfig(os.Args[1:]))

	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("camel-keys"),
		kong.Description("Layered keyboard remapper for Linux input devices"),
		kong.UsageOnError(),
		// Flags and env override values from these files.
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		ui.PrintError(os.Stderr, "failed to setup logger: "+err.Error())
		os.Exit(2)
	}

	ctx.Bind(logger)
	ctx.Bind(&cli.Globals)
	ctx.BindTo(os.Stdout, (*io.Writer)(nil))

	err = ctx.Run()
	for _, c := range closeFiles {
		_ = c.Close()
	}
	if err != nil {
		ui.PrintFatalError(os.Stderr, "camel-keys "+ctx.Command()+" failed", err)
		os.Exit(1)
	}
}

func findCLIConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--cli-config=") {
			return a[len("--cli-config="):]
		}
		if a == "--cli-config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("CAMEL_KEYS_CLI_CONFIG")
}
