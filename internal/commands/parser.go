package commands

import (
	"strings"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/assistant"
)

// Command is one backend-to-client directive extracted from raw model
// output, e.g. "COMMAND: insert_heading Introduction".
type Command struct {
	Name string `json:"name"`
	Args string `json:"args,omitempty"`
}

// Sink applies parsed commands to the hosting application (the note-editing
// side). A nil sink means commands are extracted and logged only.
type Sink interface {
	Apply(cmds []Command) error
}

// Parser extracts directive lines from completed responses. It satisfies
// assistant.CommandSink and is invoked with the raw, unfiltered buffer so
// the directives stripped from the display remain visible here.
type Parser struct {
	sink Sink
	log  *zap.Logger
}

// NewParser creates a parser forwarding extracted commands to sink.
func NewParser(sink Sink, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{sink: sink, log: log}
}

// ParseCommands implements assistant.CommandSink.
func (p *Parser) ParseCommands(raw string) error {
	cmds := Extract(raw)
	if len(cmds) == 0 {
		return nil
	}
	p.log.Debug("extracted assistant commands", zap.Int("count", len(cmds)))
	if p.sink == nil {
		return nil
	}
	return p.sink.Apply(cmds)
}

// Extract returns all directives embedded in raw, in order of appearance.
// Lines without the marker are ignored; marker lines with no payload are
// skipped.
func Extract(raw string) []Command {
	var cmds []Command
	for _, line := range strings.Split(raw, "\n") {
		idx := strings.Index(line, assistant.CommandMarker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(assistant.CommandMarker):])
		if rest == "" {
			continue
		}
		name, args, _ := strings.Cut(rest, " ")
		cmds = append(cmds, Command{Name: name, Args: strings.TrimSpace(args)})
	}
	return cmds
}
