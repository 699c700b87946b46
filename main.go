package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/krasninja/querycat-sub000/config"
	"github.com/krasninja/querycat-sub000/engine"
	"github.com/krasninja/querycat-sub000/format"
	"github.com/krasninja/querycat-sub000/logger"
)

var fOutput = flag.String(
	"output",
	"",
	"specify path to save output file, default write to STDOUT",
)

var fConfig = flag.String(
	"config",
	"",
	"specify path of the YAML configuration file",
)

var fQuery = flag.String(
	"query",
	"",
	"the SQL to run, default read from STDIN",
)

var fFormat = flag.String(
	"format",
	"plain",
	"output format, plain or color",
)

var fBorder = flag.String(
	"border",
	"",
	"string printed between two cells, default depends on the format",
)

var fPadding = flag.Int(
	"padding",
	0,
	"width of a cell, default 16",
)

var fTitle = flag.Bool(
	"title",
	true,
	"whether to print the column names",
)

func oops(stage string, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "ERROR [%s] ", stage)
	color.New(color.FgRed).Fprintf(os.Stderr, "%s\n", err)
	os.Exit(-1)
}

func readStdin() string {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		oops("read sql", err)
	}
	return string(data)
}

func outputFormat() *format.Format {
	f := format.ByName(*fFormat)
	if *fBorder != "" {
		f.Border = *fBorder
	}
	if *fPadding > 0 {
		f.Padding = *fPadding
	}
	if !*fTitle {
		f.Title = format.ParseInstruction("ignore")
	}
	return f
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*fConfig)
	if err != nil {
		oops("config", err)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		oops("logger", err)
	}
	defer log.Sync()

	s := *fQuery
	if s == "" {
		s = readStdin()
	}

	e, err := engine.New(cfg, log)
	if err != nil {
		oops("engine", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := io.Writer(os.Stdout)
	if *fOutput != "" {
		file, err := os.Create(*fOutput)
		if err != nil {
			oops("save", err)
		}
		defer file.Close()
		w = file
	}

	st, err := e.Exec(ctx, s, format.NewTextOutput(w, outputFormat()))
	if err != nil {
		oops("query", err)
	}
	log.Debugw("done", "reads", st.SourceReads, "data_errors", st.DataErrors)
}
