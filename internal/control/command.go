package control

import (
	"strings"
)

type Verb string

const (
	VerbStart  Verb = "start"
	VerbStop   Verb = "stop"
	VerbStatus Verb = "status"
	VerbCheck  Verb = "check"
	VerbServer Verb = "server"
	VerbHelp   Verb = "help"
)

var verbs = map[string]Verb{
	"start":  VerbStart,
	"시작":     VerbStart,
	"stop":   VerbStop,
	"중지":     VerbStop,
	"status": VerbStatus,
	"상태":     VerbStatus,
	"check":  VerbCheck,
	"체크":     VerbCheck,
	"server": VerbServer,
	"서버상태":   VerbServer,
	"help":   VerbHelp,
	"도움":     VerbHelp,
}

// suffixVerbs are the verbs that may be glued onto a target name, as in 영유아시작.
var suffixVerbs = []string{"시작", "중지", "체크", "상태"}

var allWords = map[string]bool{
	"":    true,
	"all": true,
	"전체":  true,
	"모두":  true,
}

type Command struct {
	Verb Verb
	// Query names a target, it is empty when All is set.
	Query string
	All   bool
}

// Parse reads a chat message into a Command, anything it does not understand is VerbHelp.
// A lone word that is not a verb, as in /영유아, is kept as the Query of a VerbHelp so the
// dispatcher can treat a target name as a start.
func Parse(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Verb: VerbHelp, All: true}
	}

	head := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// commands in groups arrive as /status@botname
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	query := strings.ToLower(strings.Join(fields[1:], " "))

	verb, ok := verbs[head]
	if !ok {
		for _, suffix := range suffixVerbs {
			prefix, found := strings.CutSuffix(head, suffix)
			if found && prefix != "" {
				verb = verbs[suffix]
				query = strings.TrimSpace(prefix + " " + query)
				ok = true
				break
			}
		}
	}
	if !ok {
		if len(fields) == 1 && head != "" {
			return Command{Verb: VerbHelp, Query: head}
		}
		return Command{Verb: VerbHelp, All: true}
	}

	if allWords[query] {
		return Command{Verb: verb, All: true}
	}
	return Command{Verb: verb, Query: query}
}
