package main

import (
	"flag"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"kansoc/internal/lsp"
)

const lsName = "kansoc"

var (
	version = "0.1.0"
	handler protocol.Handler
)

func main() {
	verbosity := flag.Int("v", 1, "log verbosity (0 notice, 1 info, 2 debug)")
	logFile := flag.String("log", "", "write logs to this file instead of stderr")
	flag.Parse()

	// stdout carries the protocol, so logs go to stderr or a file
	var path *string
	if *logFile != "" {
		path = logFile
	}
	commonlog.Configure(*verbosity, path)
	log := commonlog.GetLogger("kansoc.lsp")

	kirHandler := lsp.NewKirHandler()

	handler = protocol.Handler{
		Initialize:                     kirHandler.Initialize,
		Initialized:                    kirHandler.Initialized,
		Shutdown:                       kirHandler.Shutdown,
		SetTrace:                       kirHandler.SetTrace,
		TextDocumentDidOpen:            kirHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           kirHandler.TextDocumentDidClose,
		TextDocumentDidChange:          kirHandler.TextDocumentDidChange,
		TextDocumentCompletion:         kirHandler.TextDocumentCompletion,
		TextDocumentDocumentSymbol:     kirHandler.TextDocumentDocumentSymbol,
		TextDocumentSemanticTokensFull: kirHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Infof("starting %s language server %s", lsName, version)

	if err := s.RunStdio(); err != nil {
		log.Errorf("language server stopped: %s", err)
		os.Exit(1)
	}
}
