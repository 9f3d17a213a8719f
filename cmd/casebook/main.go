// Command casebook runs the report-building core for one target folder.
//
// By default it serves newline-delimited JSON-RPC 2.0 on stdio, the
// protocol a desktop front end drives it with. With -build it runs a
// single build request from a JSON file and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lvillar/casebook"
	"github.com/lvillar/casebook/rpc"
	"github.com/lvillar/casebook/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "casebook:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := casebook.LoadConfig()
	if err != nil {
		return err
	}

	folder := flag.String("folder", cfg.Folder, "target folder for case records and reports")
	schemaDB := flag.String("schema-db", cfg.SchemaDB, "path to the custom-template database")
	buildFile := flag.String("build", "", "run one build request from a JSON file and exit")
	flag.Parse()

	if *folder == "" {
		return fmt.Errorf("target folder is required (-folder or CASEBOOK_FOLDER)")
	}

	logger, err := casebook.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	schemas, err := schema.Open(*schemaDB)
	if err != nil {
		return err
	}
	defer schemas.Close()

	sess, err := casebook.NewSession(*folder, schemas,
		casebook.WithLogger(logger),
		casebook.WithStartNumber(cfg.StartNumber),
		casebook.WithMaxImageDimension(cfg.MaxImageDim),
		casebook.WithNumberFormat(cfg.NumberFormat),
		casebook.WithFilenameStem(cfg.FilenameStem),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *buildFile != "" {
		return buildOnce(ctx, sess, *buildFile)
	}

	logger.Info("serving rpc on stdio", zap.String("folder", *folder))
	srv := rpc.NewServer(logger)
	rpc.RegisterSession(srv, sess)
	return srv.Run(ctx)
}

func buildOnce(ctx context.Context, sess *casebook.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read build request: %w", err)
	}
	var req casebook.BuildRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode build request: %w", err)
	}
	res, err := sess.BuildReport(ctx, req)
	if err != nil {
		return err
	}
	for _, ie := range res.ImageErrors {
		fmt.Fprintf(os.Stderr, "skipped image %s: %v\n", ie.Path, ie.Err)
	}
	for _, out := range res.Outputs {
		fmt.Println(out)
	}
	return nil
}
