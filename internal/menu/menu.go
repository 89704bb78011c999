// Package menu implements the deterministic navigation layer of the
// assistant: a pure state machine mapping (message text, current state) to
// either a direct menu reply or a pass-through to the reasoning agent.
//
// The package performs no I/O and holds no state. The caller injects the
// current State and persists the returned one. This keeps every transition
// testable with a plain assert, no mocks.
package menu

import (
	"regexp"
	"strings"
)

// State is the user's current menu position. The zero value is not valid;
// absent state is represented by StateMain.
type State string

// Navigation states. The string values are persisted in the session store.
const (
	StateMain       State = "MAIN"
	StateCalendario State = "SUB_CALENDARIO"
	StateEdital     State = "SUB_EDITAL"
	StateContatos   State = "SUB_CONTATOS"
)

// Valid reports whether s is a known navigation state.
func (s State) Valid() bool {
	switch s {
	case StateMain, StateCalendario, StateEdital, StateContatos:
		return true
	}
	return false
}

// IsSubmenu reports whether s is a domain submenu.
func (s State) IsSubmenu() bool {
	return s.Valid() && s != StateMain
}

// Kind discriminates Decision variants.
type Kind int

const (
	// Direct means the pipeline replies with Decision.Reply and skips the agent.
	Direct Kind = iota
	// Route means the message continues to the intent router and agent,
	// carrying Decision.Prompt as the question text.
	Route
)

// Decision is the outcome of one menu step.
type Decision struct {
	Kind     Kind
	Reply    string // menu text to send, Direct only
	NewState State  // state to persist
	Prompt   string // question for the agent, Route only
}

// reHome matches greetings and back-navigation commands. Any of these, in
// any state, lands the user on the main menu.
var reHome = regexp.MustCompile(`(?i)^\s*(voltar?|volta|menu|inicio|início|0|cancelar|sair|oi|olá|ola|ajuda|help|start)\s*$`)

// optionSubmenu maps main-menu numeric options to submenu states.
var optionSubmenu = map[string]State{
	"1": StateCalendario,
	"2": StateEdital,
	"3": StateContatos,
}

// aliasSubmenu matches free-text shortcuts into a submenu while in MAIN
// ("edital", "calendário", "contato"), evaluated in order.
var aliasSubmenu = []struct {
	re    *regexp.Regexp
	state State
}{
	{regexp.MustCompile(`(?i)calendari|semestre|datas`), StateCalendario},
	{regexp.MustCompile(`(?i)edital|paes|vestibular|processo.seletivo`), StateEdital},
	{regexp.MustCompile(`(?i)contato|email|telefone|e-mail`), StateContatos},
}

// Decide maps one inbound text to a navigation decision. Pure: no I/O, no
// stored state, no error path; unrecognized input degrades to Route.
func Decide(text string, state State) Decision {
	txt := strings.TrimSpace(text)

	// Greeting or back command: main menu, from anywhere.
	if reHome.MatchString(txt) {
		return Decision{Kind: Direct, Reply: MainMenu, NewState: StateMain}
	}

	if !state.Valid() {
		state = StateMain
	}

	if state == StateMain {
		// Numeric option into a submenu.
		if sub, ok := optionSubmenu[txt]; ok {
			return Decision{Kind: Direct, Reply: submenuText[sub], NewState: sub}
		}
		// Textual alias into a submenu.
		for _, alias := range aliasSubmenu {
			if alias.re.MatchString(txt) {
				return Decision{Kind: Direct, Reply: submenuText[alias.state], NewState: alias.state}
			}
		}
		// Free text goes to the agent, state unchanged.
		return Decision{Kind: Route, NewState: StateMain, Prompt: txt}
	}

	// Inside a submenu: numeric options expand into full questions so the
	// agent always receives a self-contained prompt.
	if question, ok := optionQuestion[state][txt]; ok {
		return Decision{Kind: Route, NewState: StateMain, Prompt: question}
	}

	// Free text inside a submenu routes with the state kept, so the router
	// can keep forcing this submenu's topic.
	return Decision{Kind: Route, NewState: state, Prompt: txt}
}
