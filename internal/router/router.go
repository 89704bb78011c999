// Package router classifies free-text messages into knowledge topics.
//
// Like menu, this is a pure function over (text, navigation state): no I/O,
// no stored state. The pipeline runs the menu state machine first, so
// navigation commands never reach the router.
package router

import (
	"regexp"

	"github.com/uemahub/sabia/internal/menu"
	"github.com/uemahub/sabia/internal/textnorm"
)

// Topic is the classified subject area of a message.
type Topic string

const (
	TopicCalendario Topic = "CALENDARIO"
	TopicEdital     Topic = "EDITAL"
	TopicContatos   Topic = "CONTATOS"
	TopicGeneral    Topic = "GERAL"
)

// patterns are evaluated in order. EDITAL comes before CALENDARIO on
// purpose: "data de inscrição do PAES" must resolve to the application
// process, not to the academic calendar, despite the date keyword.
// Patterns match the ASCII-normalized text, so they carry no diacritics.
var patterns = []struct {
	topic Topic
	re    *regexp.Regexp
}{
	{TopicEdital, regexp.MustCompile(
		`paes|vestibular|processo.seletivo|inscricao|edital|` +
			`vaga|vagas|cota|cotas|\bac\b|pcd|br.ppi|br.q|br.dc|ir.ppi|cfo|` +
			`rede.publica|quilombola|indigena|deficiencia|` +
			`ampla.concorrencia|reserva.de.vaga|heteroidentifica|` +
			`classificacao|convocacao|resultado.final|chamada`)},
	{TopicCalendario, regexp.MustCompile(
		`calendario|matricula|rematricula|semestre|` +
			`periodo.letivo|inicio.das.aulas|fim.das.aulas|` +
			`feriado|recesso|prova|avaliacao|substitutiva|` +
			`trancamento|banca|defesa|prazo|reingresso|retardatario|` +
			`2026\.1|2026\.2|letivo`)},
	{TopicContatos, regexp.MustCompile(
		`contato|e.?mail|telefone|ramal|ligar|falar.com|` +
			`coordenacao|coordenador|diretor|secretaria|` +
			`\bprog\b|proexae|prppg|prad|\bctic\b|\bti\b|suporte|` +
			`cecen|cesb|cesc|ccsa|ceea|reitoria|vice.reitor`)},
}

// forcedTopic maps an active submenu to its topic.
var forcedTopic = map[menu.State]Topic{
	menu.StateCalendario: TopicCalendario,
	menu.StateEdital:     TopicEdital,
	menu.StateContatos:   TopicContatos,
}

// Classify determines the Topic of a message.
//
// A user inside a submenu always gets that submenu's topic, regardless of
// text: someone who typed "2" inside the EDITAL submenu is never
// reclassified as CALENDARIO by incidental keyword overlap.
func Classify(text string, state menu.State) Topic {
	if topic, ok := forcedTopic[state]; ok {
		return topic
	}

	normalized := textnorm.ASCII(text)
	for _, p := range patterns {
		if p.re.MatchString(normalized) {
			return p.topic
		}
	}
	return TopicGeneral
}
